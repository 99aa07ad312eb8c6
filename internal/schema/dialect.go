package schema

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Dialect is the engine-specific part of catalog introspection and SQL rendering.
// Everything else (plan validation, the rebuild procedure) is engine-agnostic.
type Dialect interface {
	// Name is the config driver name ("sqlite", "postgres", "mysql").
	Name() string
	QuoteIdentifier(name string) string
	// TableIdentifier returns the quoted, possibly schema-qualified, table reference.
	TableIdentifier(name string) string
	// Literal renders a Go value as a SQL literal.
	Literal(v any) string
	// ConstantExpr renders a constant destined for col inside INSERT ... SELECT.
	ConstantExpr(v any, col Column) string
	// TransactionalDDL reports whether DROP/RENAME can be rolled back.
	TransactionalDDL() bool
	RenameTable(from, to string) string

	ListTables(ctx context.Context, q sqlx.QueryerContext) ([]string, error)
	// DescribeTable returns a *NotFoundError when the table does not exist.
	DescribeTable(ctx context.Context, q sqlx.QueryerContext, name string) (*Table, error)
	// CheckForeignKeys reports FK violations touching table, for engines that
	// do not enforce them while the rebuild runs.
	CheckForeignKeys(ctx context.Context, q sqlx.QueryerContext, table string) error
}

// ForDriver returns the dialect for a config driver name. pgSchema is only used by postgres.
func ForDriver(driver, pgSchema string) (Dialect, error) {
	switch driver {
	case "sqlite":
		return SQLite{}, nil
	case "postgres":
		if pgSchema == "" {
			pgSchema = "public"
		}
		return Postgres{Schema: pgSchema}, nil
	case "mysql":
		return MySQL{}, nil
	default:
		return nil, fmt.Errorf("no dialect for driver %q", driver)
	}
}

// quoteWith wraps name in q, doubling any embedded q.
func quoteWith(q, name string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// quoteString wraps a value in single quotes, escaping embedded single quotes.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// literal renders common scalar values; trueLit and falseLit are the engine's booleans.
func literal(v any, trueLit, falseLit string, blob func([]byte) string) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return trueLit
		}
		return falseLit
	case string:
		return quoteString(x)
	case []byte:
		return blob(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return quoteString(x.UTC().Format("2006-01-02 15:04:05.999999"))
	case fmt.Stringer:
		return quoteString(x.String())
	default:
		return quoteString(fmt.Sprintf("%v", x))
	}
}

func hexBlob(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}
