package evolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hurou927/schemashift/internal/plan"
	"github.com/hurou927/schemashift/internal/schema"
)

// IntegrityError reports that the shadow table does not hold the same number
// of rows as the source after the copy.
type IntegrityError struct {
	Table  string
	Shadow string
	Before int64
	After  int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("row count mismatch copying %s into %s: %d before, %d after",
		e.Table, e.Shadow, e.Before, e.After)
}

// PartialSwapError reports a source table that was dropped without its shadow
// being renamed into place. It is never recovered automatically.
type PartialSwapError struct {
	Table   string
	Orphans []string
	Cause   error
}

func (e *PartialSwapError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "partial swap: table %q is missing and shadow table(s) %s remain",
		e.Table, strings.Join(e.Orphans, ", "))
	if e.Cause != nil {
		fmt.Fprintf(&b, " (%v)", e.Cause)
	}
	fmt.Fprintf(&b, "; run `schemashift repair %s` to rename the shadow into place", e.Table)
	return b.String()
}

func (e *PartialSwapError) Unwrap() error {
	return e.Cause
}

// ErrNothingToRepair is returned by Repair when there is no orphaned shadow to rename.
var ErrNothingToRepair = errors.New("nothing to repair")

// Exit codes of the migrate command.
const (
	ExitSuccess     = 0
	ExitAborted     = 1
	ExitPartialSwap = 2
)

// ExitCode classifies err: 0 for nil, 2 for a partial swap, 1 otherwise.
func ExitCode(err error) int {
	var partial *PartialSwapError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &partial):
		return ExitPartialSwap
	default:
		return ExitAborted
	}
}

// Kind names the error class for reports.
func Kind(err error) string {
	var (
		validation *plan.ValidationError
		integrity  *IntegrityError
		partial    *PartialSwapError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &partial):
		return "PartialSwap"
	case errors.As(err, &validation):
		return "ValidationError"
	case errors.As(err, &integrity):
		return "IntegrityError"
	case errors.Is(err, schema.ErrNotFound):
		return "NotFound"
	default:
		return "Error"
	}
}
