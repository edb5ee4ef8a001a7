package entity

// SyncError describes a failed balance fetch for one exchange account.
// A failing account leaves its mirror untouched and never aborts the
// rest of the batch.
type SyncError struct {
	AccountID string `json:"account_id"`
	Platform  string `json:"platform"`
	Err       string `json:"error"`
}

// SyncReport is the outcome of one synchronization batch.
// Errors are ordered by the position of the account in the batch input.
type SyncReport struct {
	RunID     string      `json:"run_id"`
	HasErrors bool        `json:"has_errors"`
	Errors    []SyncError `json:"errors,omitempty"`
}
