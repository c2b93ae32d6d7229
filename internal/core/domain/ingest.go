package domain

// IngestStatus is the outcome reported to upload callers.
type IngestStatus string

// Available ingest statuses.
const (
	IngestStatusSuccess IngestStatus = "success"
	IngestStatusError   IngestStatus = "error"
)

// IngestAction records whether a batch appended to or replaced an index.
type IngestAction string

// Available ingest actions.
const (
	IngestActionAppend IngestAction = "append"
	IngestActionReset  IngestAction = "reset"
)

// ActionFromString parses the upload form's action field.
// Anything other than "reset" appends.
func ActionFromString(s string) IngestAction {
	if s == string(IngestActionReset) {
		return IngestActionReset
	}
	return IngestActionAppend
}

// IngestResult is the structured result of an ingestion batch.
// Expected failures (missing session, nothing extracted) are reported
// here rather than as Go errors.
type IngestResult struct {
	Status    IngestStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	Chunks    int          `json:"chunks,omitempty"`
	Files     int          `json:"files,omitempty"`
	SessionID string       `json:"sessionId,omitempty"`
	Action    IngestAction `json:"action,omitempty"`

	// Err is the sentinel behind an error status, for errors.Is checks.
	Err error `json:"-"`
}

// IngestFailure builds an error result from a sentinel error.
func IngestFailure(err error, message string) *IngestResult {
	return &IngestResult{
		Status:  IngestStatusError,
		Message: message,
		Err:     err,
	}
}

// OK returns true if the batch was indexed.
func (r *IngestResult) OK() bool {
	return r != nil && r.Status == IngestStatusSuccess
}
