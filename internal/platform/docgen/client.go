package docgen

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Request asks the rendering service to produce a printable document for a
// saved note.
type Request struct {
	NoteID       uuid.UUID `json:"note_id"`
	CaseID       uuid.UUID `json:"case_id"`
	DocumentType string    `json:"document_type"`
	Title        string    `json:"title"`
}

type generateResponse struct {
	Status     string `json:"status"`
	ContentRef string `json:"content_ref"`
	Message    string `json:"message,omitempty"`
}

// Client talks to the external document rendering service. Calls are
// best-effort: the dispatcher invokes them after the note is committed, and
// a failure means the document is rendered later, not that the save failed.
type Client struct {
	http *resty.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: client}
}

// Generate renders the document for a note and returns the stored content
// reference.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/documents/generate")
	if err != nil {
		return "", fmt.Errorf("call document service: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("document service returned %d: %s", resp.StatusCode(), resp.String())
	}
	if out.ContentRef == "" {
		return "", fmt.Errorf("document service returned no content reference: %s", out.Message)
	}
	return out.ContentRef, nil
}
