package models

// ImportOptions are the recognised switches of a CSV import request.
type ImportOptions struct {
	SkipFirstRow   bool
	ValidateData   bool
	SkipDuplicates bool
}

// ImportOutcome classifies one parsed row.
type ImportOutcome string

const (
	ImportOutcomeImported           ImportOutcome = "imported"
	ImportOutcomeValidationRejected ImportOutcome = "validation_rejected"
	ImportOutcomeDuplicateSkipped   ImportOutcome = "duplicate_skipped"
	ImportOutcomeInsertFailed       ImportOutcome = "insert_failed"
)

// ImportCounts mirrors the import endpoint's data payload.
// TotalProcessed counts insert candidates; ErrorCount counts insert failures.
type ImportCounts struct {
	TotalProcessed       int `json:"totalProcessed"`
	SuccessCount         int `json:"successCount"`
	ErrorCount           int `json:"errorCount"`
	DuplicateCount       int `json:"duplicateCount"`
	ValidationErrorCount int `json:"validationErrorCount"`
}

// ImportDetails carries capped example messages per failure class.
type ImportDetails struct {
	ValidationErrors []string `json:"validationErrors"`
	Duplicates       []string `json:"duplicates"`
	ImportErrors     []string `json:"importErrors"`
}

// Empty reports whether no example message was collected.
func (d ImportDetails) Empty() bool {
	return len(d.ValidationErrors) == 0 && len(d.Duplicates) == 0 && len(d.ImportErrors) == 0
}

// ImportResult is the aggregate outcome of one import batch.
type ImportResult struct {
	BatchID     string        `json:"batchId"`
	Counts      ImportCounts  `json:"counts"`
	Details     ImportDetails `json:"details"`
	ImportedIDs []int64       `json:"importedIds,omitempty"`
}

// Committed reports whether any row was written.
func (r *ImportResult) Committed() bool {
	return r != nil && r.Counts.SuccessCount > 0
}

// Partial reports whether rows were written alongside failures.
func (r *ImportResult) Partial() bool {
	if r == nil {
		return false
	}
	failures := r.Counts.ErrorCount + r.Counts.DuplicateCount + r.Counts.ValidationErrorCount
	return r.Counts.SuccessCount > 0 && failures > 0
}
