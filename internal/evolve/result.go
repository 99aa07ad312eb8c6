package evolve

// Status is the outcome of a rebuild.
type Status string

const (
	StatusSuccess Status = "success"
	StatusAborted Status = "aborted"
)

// Stage names a step of the rebuild. On an aborted result it is the step that failed.
type Stage string

const (
	StageIntrospection Stage = "introspection"
	StageShadowCreate  Stage = "shadow_create"
	StageCopy          Stage = "copy"
	StageVerify        Stage = "verify"
	StageSwap          Stage = "swap"
)

// Result describes what a rebuild did. Err is nil exactly when Status is StatusSuccess.
type Result struct {
	Table      string   `json:"table"`
	Shadow     string   `json:"shadow,omitempty"`
	Status     Status   `json:"status"`
	Stage      Stage    `json:"stage,omitempty"`
	RowsBefore int64    `json:"rows_before"`
	RowsAfter  int64    `json:"rows_after"`
	DryRun     bool     `json:"dry_run,omitempty"`
	Statements []string `json:"statements,omitempty"`
	Dependents []string `json:"dependents,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Err        error    `json:"-"`
}

// ExitCode maps the result to the migrate command's exit status.
func (r *Result) ExitCode() int {
	return ExitCode(r.Err)
}

func (r *Result) abort(stage Stage, err error) *Result {
	r.Status = StatusAborted
	r.Stage = stage
	r.Err = err
	return r
}
