package core

// CheckStatus is the outcome of a validation check.
type CheckStatus string

// Check statuses.
const (
	CheckPass CheckStatus = "PASS"
	CheckFail CheckStatus = "FAIL"
)

// Check names produced by the validator.
const (
	CheckFileExists      = "file_exists"
	CheckRowCount        = "row_count"
	CheckGrainUnique     = "grain_unique"
	CheckReconcile       = "reconcile"
	CheckDateRange       = "date_range"
	CheckNonEmptyColumns = "non_empty_columns"
	CheckDateSpine       = "date_spine"
	CheckDedupAccounting = "dedup_accounting"
)

// CheckResult is one cell of the validation matrix.
type CheckResult struct {
	Table    string      `json:"table"`
	Check    string      `json:"check"`
	Status   CheckStatus `json:"status"`
	Observed string      `json:"observed,omitempty"`
	Expected string      `json:"expected,omitempty"`
	Detail   string      `json:"detail,omitempty"`
}

// Passed reports whether the check passed.
func (c CheckResult) Passed() bool {
	return c.Status == CheckPass
}
