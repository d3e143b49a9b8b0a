package clinical

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DiagnosisKind discriminates between a reference to an already-recorded
// diagnosis and a new diagnosis entered during the current session.
type DiagnosisKind string

const (
	DiagnosisExisting DiagnosisKind = "existing"
	DiagnosisNew      DiagnosisKind = "new"
)

// Diagnosis is one selected diagnosis on a note. Existing selections carry
// DiagnosisID; new ones are identified by Code until first save.
type Diagnosis struct {
	Kind        DiagnosisKind `json:"kind"`
	DiagnosisID *uuid.UUID    `json:"diagnosis_id,omitempty"`
	Code        string        `json:"code"`
	Description string        `json:"description"`
	Status      string        `json:"status,omitempty"`
	OnsetDate   *time.Time    `json:"onset_date,omitempty"`
	RecordedAt  *time.Time    `json:"recorded_at,omitempty"`
	IsPrimary   bool          `json:"is_primary"`
	Note        *string       `json:"note,omitempty"`
}

// key identifies a selection: record id for existing diagnoses, code for
// ones that have not been persisted yet.
func (d Diagnosis) key() string {
	if d.Kind == DiagnosisExisting && d.DiagnosisID != nil {
		return "id:" + d.DiagnosisID.String()
	}
	return "code:" + d.Code
}

// PendingPrimaryChange describes a requested primary-diagnosis swap that has
// not been confirmed. The current primary stays in place until ConfirmPrimarySwap.
type PendingPrimaryChange struct {
	DemoteCode         string `json:"demote_code"`
	DemoteDescription  string `json:"demote_description"`
	PromoteCode        string `json:"promote_code"`
	PromoteDescription string `json:"promote_description"`
}

// SetPrimary requests that the diagnosis identified by code become primary.
// When no diagnosis is primary yet the change applies immediately. When a
// different diagnosis is already primary, the selection is left untouched and
// a PendingPrimaryChange is returned naming the diagnosis that would be
// demoted; the swap only happens through ConfirmPrimarySwap.
func SetPrimary(selected []Diagnosis, code string) ([]Diagnosis, *PendingPrimaryChange, error) {
	target := -1
	current := -1
	for i, d := range selected {
		if d.Code == code {
			target = i
		}
		if d.IsPrimary {
			current = i
		}
	}
	if target < 0 {
		return selected, nil, fmt.Errorf("diagnosis %s is not selected", code)
	}
	if current == target {
		return selected, nil, nil
	}

	out := make([]Diagnosis, len(selected))
	copy(out, selected)

	if current < 0 {
		out[target].IsPrimary = true
		return out, nil, nil
	}

	return selected, &PendingPrimaryChange{
		DemoteCode:         selected[current].Code,
		DemoteDescription:  selected[current].Description,
		PromoteCode:        selected[target].Code,
		PromoteDescription: selected[target].Description,
	}, nil
}

// ConfirmPrimarySwap applies a previously surfaced primary change: the old
// primary is demoted and the new one promoted in a single step, so no
// intermediate state with two primaries is ever observable.
func ConfirmPrimarySwap(selected []Diagnosis, change PendingPrimaryChange) ([]Diagnosis, error) {
	demote := -1
	promote := -1
	for i, d := range selected {
		if d.Code == change.DemoteCode && d.IsPrimary {
			demote = i
		}
		if d.Code == change.PromoteCode {
			promote = i
		}
	}
	if demote < 0 || promote < 0 {
		return selected, fmt.Errorf("primary change no longer applies")
	}

	out := make([]Diagnosis, len(selected))
	copy(out, selected)
	out[demote].IsPrimary = false
	out[promote].IsPrimary = true
	return out, nil
}

// NormalizeDiagnoses validates a selection before save: at most one primary,
// no duplicate selections, and every entry carries enough identity to persist.
func NormalizeDiagnoses(selected []Diagnosis) ([]Diagnosis, error) {
	primaries := 0
	seen := make(map[string]bool, len(selected))
	out := make([]Diagnosis, 0, len(selected))

	for _, d := range selected {
		if d.Kind == DiagnosisExisting && d.DiagnosisID == nil {
			return nil, fmt.Errorf("existing diagnosis %s has no record id", d.Code)
		}
		if d.Code == "" {
			return nil, fmt.Errorf("diagnosis has no code")
		}
		if seen[d.key()] {
			continue
		}
		seen[d.key()] = true
		if d.IsPrimary {
			primaries++
		}
		out = append(out, d)
	}

	if primaries > 1 {
		return nil, fmt.Errorf("more than one primary diagnosis selected")
	}
	return out, nil
}

// MergeExistingAndNew overlays draft selections onto the current session
// selections, preserving user-entered status and notes on any diagnosis the
// user re-selects. Existing diagnoses match by record id, unsaved ones by code.
func MergeExistingAndNew(current, draft []Diagnosis) []Diagnosis {
	byKey := make(map[string]Diagnosis, len(current))
	for _, d := range current {
		byKey[d.key()] = d
	}

	out := make([]Diagnosis, 0, len(draft))
	for _, d := range draft {
		if prev, ok := byKey[d.key()]; ok {
			if d.Status == "" {
				d.Status = prev.Status
			}
			if d.Note == nil {
				d.Note = prev.Note
			}
		}
		out = append(out, d)
	}
	return out
}

// DedupeByCode collapses a client's diagnosis history to one entry per code,
// keeping the most recently recorded one.
func DedupeByCode(loaded []Diagnosis) []Diagnosis {
	latest := make(map[string]int, len(loaded))
	var out []Diagnosis
	for _, d := range loaded {
		i, ok := latest[d.Code]
		if !ok {
			latest[d.Code] = len(out)
			out = append(out, d)
			continue
		}
		if newerThan(d.RecordedAt, out[i].RecordedAt) {
			out[i] = d
		}
	}
	return out
}

func newerThan(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}
