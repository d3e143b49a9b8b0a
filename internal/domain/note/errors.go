package note

import "errors"

var (
	// ErrMissingTimeRange means the visit start or end time was never entered.
	ErrMissingTimeRange = errors.New("visit start and end times are required")
	// ErrInvalidTimeRange means the visit end time is not after the start.
	ErrInvalidTimeRange = errors.New("visit end time must be after the start time")
	// ErrSignatureRequired means an approval was requested before the author
	// signed the note.
	ErrSignatureRequired = errors.New("author signature is required before requesting approval")
	// ErrReapprovalRequired means a signature was captured for a note whose
	// previous signature is still in force.
	ErrReapprovalRequired = errors.New("note is already signed; changes require a new approval round")
	// ErrPendingPrimaryChange means a primary-diagnosis swap was requested
	// but never confirmed.
	ErrPendingPrimaryChange = errors.New("primary diagnosis change is awaiting confirmation")
	// ErrNotEditable means the note's lifecycle no longer allows edits.
	ErrNotEditable = errors.New("note is no longer editable")
)
