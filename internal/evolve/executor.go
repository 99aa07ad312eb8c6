// Package evolve rebuilds a table into a new column shape by copying it into
// a shadow table, verifying the copy and swapping the shadow into place.
package evolve

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"github.com/hurou927/schemashift/internal/backup"
	"github.com/hurou927/schemashift/internal/ddl"
	"github.com/hurou927/schemashift/internal/graph"
	"github.com/hurou927/schemashift/internal/plan"
	"github.com/hurou927/schemashift/internal/schema"
)

// shadowInfix separates the source name from the random token in shadow table names.
const shadowInfix = "__shift_"

// shadowTokenLen is the length of the lowercase hex token ending a shadow name.
const shadowTokenLen = 8

// maxShadowAttempts bounds how often a colliding shadow name is regenerated.
const maxShadowAttempts = 5

// Catalog is the read side the executor depends on. *schema.Introspector implements it.
type Catalog interface {
	ListTables(ctx context.Context) ([]string, error)
	GetTableSchema(ctx context.Context, name string) (*schema.Table, error)
	GetRowCount(ctx context.Context, name string) (int64, error)
}

// BackupOpener opens the destination of the source dump. The executor calls
// it at most once, after the copy is verified, and closes what it returns.
type BackupOpener func() (io.WriteCloser, error)

// StageHook runs before each stage after validation. A non-nil error aborts
// the rebuild at that stage with the usual cleanup.
type StageHook func(ctx context.Context, stage Stage) error

// Executor runs table rebuilds against one database handle. It assumes
// exclusive access to the table for the duration of a rebuild.
type Executor struct {
	db      *sqlx.DB
	dialect schema.Dialect
	catalog Catalog
	hook    StageHook
	backup  BackupOpener
	token   func() string
	log     log.FieldLogger
}

// Option configures an Executor.
type Option func(*Executor)

// WithCatalog replaces the introspector used for validation and verification.
func WithCatalog(c Catalog) Option {
	return func(e *Executor) { e.catalog = c }
}

// WithStageHook installs a hook called before every stage.
func WithStageHook(h StageHook) Option {
	return func(e *Executor) { e.hook = h }
}

// WithBackup dumps the source rows right before the swap into the writer
// returned by open. Runs that abort earlier never call open.
func WithBackup(open BackupOpener) Option {
	return func(e *Executor) { e.backup = open }
}

// WithLogger sets the logger; the standard logrus logger is used otherwise.
func WithLogger(l log.FieldLogger) Option {
	return func(e *Executor) { e.log = l }
}

// WithTokenSource sets the generator of shadow-name tokens.
func WithTokenSource(f func() string) Option {
	return func(e *Executor) { e.token = f }
}

// New creates an Executor over db.
func New(db *sqlx.DB, d schema.Dialect, opts ...Option) *Executor {
	e := &Executor{
		db:      db,
		dialect: d,
		catalog: schema.NewIntrospector(db, d),
		token:   randomToken,
		log:     log.StandardLogger(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// ShadowPrefix is the name prefix of every shadow table built for source.
func ShadowPrefix(source string) string {
	return source + shadowInfix
}

// Execute validates p against the live schema and rebuilds the source table.
// It runs exactly once and never retries; the outcome is always in the Result.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan) *Result {
	return e.run(ctx, p, false)
}

// DryRun validates p and returns the statements Execute would run, without
// modifying anything.
func (e *Executor) DryRun(ctx context.Context, p *plan.Plan) *Result {
	return e.run(ctx, p, true)
}

type statements struct {
	create, copy, drop, rename string
}

func (e *Executor) run(ctx context.Context, p *plan.Plan, dryRun bool) *Result {
	res := &Result{Table: p.Source, Status: StatusSuccess, DryRun: dryRun}
	logger := e.log.WithField("table", p.Source)

	// Validate
	v, err := e.validate(ctx, p)
	if err != nil {
		return res.abort(StageIntrospection, err)
	}
	for _, fk := range v.dependents {
		res.Dependents = append(res.Dependents,
			fmt.Sprintf("%s(%s)", fk.ChildTable, strings.Join(fk.ChildColumns, ", ")))
	}

	// Snapshot
	res.RowsBefore, err = e.catalog.GetRowCount(ctx, p.Source)
	if err != nil {
		return res.abort(StageIntrospection, fmt.Errorf("counting source rows: %w", err))
	}

	res.Shadow, err = e.shadowName(ctx, p.Source)
	if err != nil {
		return res.abort(StageIntrospection, err)
	}
	stmts, err := e.buildStatements(p, res.Shadow)
	if err != nil {
		return res.abort(StageIntrospection, err)
	}

	if dryRun {
		res.Statements = []string{stmts.create, stmts.copy, stmts.drop, stmts.rename}
		logger.WithField("rows", res.RowsBefore).Info("dry run: plan is valid")
		return res
	}

	// Stale shadows only get dropped once the plan is known to be good.
	for _, orphan := range v.staleShadows {
		logger.WithField("shadow", orphan).Warn("dropping stale shadow table from an earlier run")
		if err := e.exec(ctx, res, ddl.DropTableIfExists(e.dialect, orphan)); err != nil {
			return res.abort(StageIntrospection, fmt.Errorf("dropping stale shadow %s: %w", orphan, err))
		}
	}

	return e.rebuild(ctx, p, res, stmts, logger)
}

// rebuild runs ShadowCreate through Swap. The shadow table is dropped on
// every exit path except a completed or partially applied swap.
func (e *Executor) rebuild(ctx context.Context, p *plan.Plan, res *Result, stmts statements, logger log.FieldLogger) *Result {
	logger = logger.WithField("shadow", res.Shadow)
	created, keepShadow := false, false
	defer func() {
		if !created || keepShadow {
			return
		}
		cleanup := context.WithoutCancel(ctx)
		if _, err := e.db.ExecContext(cleanup, ddl.DropTableIfExists(e.dialect, res.Shadow)); err != nil {
			logger.WithError(err).Error("failed to drop shadow table")
			res.Warnings = append(res.Warnings, fmt.Sprintf("shadow table %s was not dropped: %v", res.Shadow, err))
			return
		}
		logger.Debug("dropped shadow table")
	}()

	// ShadowCreate
	if err := e.enter(ctx, StageShadowCreate); err != nil {
		return res.abort(StageShadowCreate, err)
	}
	if err := e.exec(ctx, res, stmts.create); err != nil {
		return res.abort(StageShadowCreate, fmt.Errorf("creating shadow table: %w", err))
	}
	created = true

	// Copy
	if err := e.enter(ctx, StageCopy); err != nil {
		return res.abort(StageCopy, err)
	}
	if err := e.inTx(ctx, res, stmts.copy); err != nil {
		return res.abort(StageCopy, fmt.Errorf("copying rows: %w", err))
	}

	// Verify
	if err := e.enter(ctx, StageVerify); err != nil {
		return res.abort(StageVerify, err)
	}
	after, err := e.catalog.GetRowCount(ctx, res.Shadow)
	if err != nil {
		return res.abort(StageVerify, fmt.Errorf("counting shadow rows: %w", err))
	}
	res.RowsAfter = after
	if after != res.RowsBefore {
		return res.abort(StageVerify, &IntegrityError{
			Table: p.Source, Shadow: res.Shadow, Before: res.RowsBefore, After: after,
		})
	}
	logger.WithField("rows", after).Info("copy verified")

	// Swap
	if err := e.enter(ctx, StageSwap); err != nil {
		return res.abort(StageSwap, err)
	}
	if e.backup != nil {
		if err := e.dumpSource(ctx, p.Source); err != nil {
			return res.abort(StageSwap, err)
		}
	}
	if e.dialect.TransactionalDDL() {
		err = e.inTx(ctx, res, stmts.drop, stmts.rename)
	} else {
		keepShadow, err = e.swapNonTransactional(ctx, res, stmts)
	}
	if err != nil {
		return res.abort(StageSwap, err)
	}
	created = false

	e.confirm(ctx, p, res, logger)
	logger.WithFields(log.Fields{"rows_before": res.RowsBefore, "rows_after": res.RowsAfter}).Info("table rebuilt")
	return res
}

// swapNonTransactional drops then renames. A rename failure after a
// successful drop is a partial swap; the shadow must be kept for repair.
func (e *Executor) swapNonTransactional(ctx context.Context, res *Result, stmts statements) (partial bool, err error) {
	if err := e.exec(ctx, res, stmts.drop); err != nil {
		return false, fmt.Errorf("dropping source table: %w", err)
	}
	if err := e.exec(context.WithoutCancel(ctx), res, stmts.rename); err != nil {
		return true, &PartialSwapError{Table: res.Table, Orphans: []string{res.Shadow}, Cause: err}
	}
	return false, nil
}

// confirm re-reads the rebuilt table and records a warning if its shape
// differs from the plan's target.
func (e *Executor) confirm(ctx context.Context, p *plan.Plan, res *Result, logger log.FieldLogger) {
	final, err := e.catalog.GetTableSchema(ctx, p.Source)
	if err != nil {
		logger.WithError(err).Warn("could not re-read rebuilt table")
		res.Warnings = append(res.Warnings, fmt.Sprintf("could not re-read %s: %v", p.Source, err))
		return
	}
	if !schema.SameShape(final.Columns, p.Columns()) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s columns after rebuild are %v, the engine normalised the declared shape",
			p.Source, final.ColumnNames()))
	}
}

func (e *Executor) dumpSource(ctx context.Context, source string) error {
	live, err := e.catalog.GetTableSchema(ctx, source)
	if err != nil {
		return fmt.Errorf("describing source for backup: %w", err)
	}
	w, err := e.backup()
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	n, err := backup.Dump(ctx, e.db, e.dialect, live, w)
	if cerr := w.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}
	e.log.WithFields(log.Fields{"table": source, "rows": n}).Info("backup written")
	return nil
}

type validated struct {
	live         *schema.Table
	dependents   []schema.ForeignKey
	staleShadows []string
}

// validate reads the live schema, detects partial swaps and checks the plan.
// It never modifies the database.
func (e *Executor) validate(ctx context.Context, p *plan.Plan) (*validated, error) {
	if err := ddl.ValidateIdentifier(ShadowPrefix(p.Source) + strings.Repeat("0", shadowTokenLen)); err != nil {
		return nil, &plan.ValidationError{Table: p.Source, Problems: []string{
			fmt.Sprintf("cannot derive a shadow table name for %q: %v", p.Source, err),
		}}
	}

	tables, err := e.catalog.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	orphans := shadowsOf(tables, p.Source)
	if !slices.Contains(tables, p.Source) {
		if len(orphans) > 0 {
			return nil, &PartialSwapError{Table: p.Source, Orphans: orphans}
		}
		return nil, &schema.NotFoundError{Table: p.Source}
	}

	exclude := make(map[string]bool, len(orphans))
	for _, o := range orphans {
		exclude[o] = true
	}
	described := make(map[string]*schema.Table, len(tables))
	for _, name := range tables {
		if exclude[name] {
			continue
		}
		tbl, err := e.catalog.GetTableSchema(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("describing %s: %w", name, err)
		}
		described[name] = tbl
	}

	v := &validated{
		live:         described[p.Source],
		dependents:   graph.Build(described, nil).Dependents(p.Source),
		staleShadows: orphans,
	}
	if err := p.Validate(v.live, v.dependents); err != nil {
		return nil, err
	}
	return v, nil
}

// shadowsOf returns the tables named like a shadow the executor builds for
// source: the shadow prefix followed by exactly one token.
func shadowsOf(tables []string, source string) []string {
	var out []string
	for _, t := range tables {
		if isShadowOf(t, source) {
			out = append(out, t)
		}
	}
	return out
}

func isShadowOf(name, source string) bool {
	token, ok := strings.CutPrefix(name, ShadowPrefix(source))
	return ok && validToken(token)
}

func validToken(token string) bool {
	if len(token) != shadowTokenLen {
		return false
	}
	for _, c := range token {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// shadowName picks a shadow table name not present in the catalog.
func (e *Executor) shadowName(ctx context.Context, source string) (string, error) {
	tables, err := e.catalog.ListTables(ctx)
	if err != nil {
		return "", fmt.Errorf("listing tables: %w", err)
	}
	for range maxShadowAttempts {
		token := e.token()
		if !validToken(token) {
			return "", fmt.Errorf("shadow token %q is not %d lowercase hex digits", token, shadowTokenLen)
		}
		name := ShadowPrefix(source) + token
		if err := ddl.ValidateIdentifier(name); err != nil {
			return "", fmt.Errorf("shadow table name: %w", err)
		}
		if !slices.Contains(tables, name) {
			return name, nil
		}
	}
	return "", fmt.Errorf("no free shadow table name for %s after %d attempts", source, maxShadowAttempts)
}

func (e *Executor) buildStatements(p *plan.Plan, shadow string) (statements, error) {
	create, err := ddl.CreateTable(e.dialect, shadow, p.Columns(), p.ForeignKeys())
	if err != nil {
		return statements{}, fmt.Errorf("building CREATE TABLE: %w", err)
	}

	var assignments []ddl.Assignment
	for _, col := range p.Columns() {
		m, ok := p.Mapping[col.Name]
		if !ok {
			continue
		}
		expr := e.dialect.QuoteIdentifier(m.Column)
		if m.IsValue {
			expr = e.dialect.ConstantExpr(m.Value, col)
		}
		assignments = append(assignments, ddl.Assignment{Column: col.Name, Expr: expr})
	}
	copySQL, err := ddl.InsertSelect(e.dialect, shadow, p.Source, assignments)
	if err != nil {
		return statements{}, fmt.Errorf("building INSERT ... SELECT: %w", err)
	}

	return statements{
		create: create,
		copy:   copySQL,
		drop:   ddl.DropTable(e.dialect, p.Source),
		rename: e.dialect.RenameTable(shadow, p.Source),
	}, nil
}

// enter checks for cancellation and runs the stage hook.
func (e *Executor) enter(ctx context.Context, stage Stage) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cancelled before %s: %w", stage, err)
	}
	e.log.WithField("stage", stage).Debug("entering stage")
	if e.hook != nil {
		if err := e.hook(ctx, stage); err != nil {
			return fmt.Errorf("stage %s: %w", stage, err)
		}
	}
	return nil
}

func (e *Executor) exec(ctx context.Context, res *Result, stmt string) error {
	res.Statements = append(res.Statements, stmt)
	_, err := e.db.ExecContext(ctx, stmt)
	return err
}

// inTx runs stmts in one transaction, plus the dialect's FK check when the
// transaction renames a table into place.
func (e *Executor) inTx(ctx context.Context, res *Result, stmts ...string) error {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		res.Statements = append(res.Statements, stmt)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if len(stmts) > 1 {
		if err := e.dialect.CheckForeignKeys(ctx, tx, res.Table); err != nil {
			return err
		}
	}
	return tx.Commit()
}
