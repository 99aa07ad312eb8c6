package evolve

import (
	"context"
	"fmt"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/hurou927/schemashift/internal/schema"
)

// Repair finishes a partial swap of table by renaming its only remaining
// shadow table into place. It returns ErrNothingToRepair when table exists,
// and refuses to choose when more than one shadow is left.
func (e *Executor) Repair(ctx context.Context, table string) (string, error) {
	tables, err := e.catalog.ListTables(ctx)
	if err != nil {
		return "", fmt.Errorf("listing tables: %w", err)
	}
	if slices.Contains(tables, table) {
		return "", fmt.Errorf("%s exists: %w", table, ErrNothingToRepair)
	}

	orphans := shadowsOf(tables, table)
	switch len(orphans) {
	case 0:
		return "", &schema.NotFoundError{Table: table}
	case 1:
	default:
		return "", fmt.Errorf("%s has %d shadow tables (%s); rename the right one by hand",
			table, len(orphans), strings.Join(orphans, ", "))
	}

	shadow := orphans[0]
	if _, err := e.db.ExecContext(ctx, e.dialect.RenameTable(shadow, table)); err != nil {
		return "", fmt.Errorf("renaming %s to %s: %w", shadow, table, err)
	}
	if err := e.dialect.CheckForeignKeys(ctx, e.db, table); err != nil {
		e.log.WithError(err).WithField("table", table).Warn("foreign key check failed after repair")
	}
	e.log.WithFields(log.Fields{"table": table, "shadow": shadow}).Info("renamed shadow table into place")
	return shadow, nil
}
