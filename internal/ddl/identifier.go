package ddl

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierRe allows alphanumeric + underscores, starting with a letter or underscore.
var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// columnTypeRe matches declared type names, optionally with precision/scale parameters.
// Accepted forms:
//
//	WORD [WORD ...]              → INTEGER, TEXT, double precision, timestamp with time zone
//	WORD(digits)                 → VARCHAR(255), character varying(64)
//	WORD(digits, digits)         → DECIMAL(10,2), NUMERIC(18,4)
//	WORD[]                       → INTEGER[] (postgres)
var columnTypeRe = regexp.MustCompile(`(?i)^[A-Z][A-Z0-9_ ]*(?:\(\s*\d+\s*(?:,\s*\d+\s*)?\))?(?:\[\])?$`)

// maxIdentifierLen is the maximum length allowed for a SQL identifier.
// PostgreSQL truncates at 63 bytes, which would break shadow-name checks.
const maxIdentifierLen = 63

// maxColumnTypeLen is the maximum length allowed for a column type string.
const maxColumnTypeLen = 64

// ValidateIdentifier checks that name is a safe SQL identifier:
//   - Non-empty
//   - At most 63 characters
//   - Matches [a-zA-Z_][a-zA-Z0-9_]*
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("name must be at most %d characters", maxIdentifierLen)
	}
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("name must match [a-zA-Z_][a-zA-Z0-9_]*")
	}
	return nil
}

// ValidateColumnType checks that typeName is a plain declared type.
func ValidateColumnType(typeName string) error {
	if typeName == "" {
		return fmt.Errorf("column type is required")
	}
	if len(typeName) > maxColumnTypeLen {
		return fmt.Errorf("column type must be at most %d characters", maxColumnTypeLen)
	}
	if strings.ContainsAny(typeName, ";-'\"\\") {
		return fmt.Errorf("column type contains invalid characters")
	}
	if !columnTypeRe.MatchString(typeName) {
		return fmt.Errorf("column type %q is not a recognized type pattern", typeName)
	}
	return nil
}

// ValidateDefault rejects default expressions that could end the statement
// or hide the rest of it behind a comment.
func ValidateDefault(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("default expression is empty")
	}
	if strings.Contains(expr, ";") || strings.Contains(expr, "--") || strings.Contains(expr, "/*") {
		return fmt.Errorf("default expression %q contains invalid characters", expr)
	}
	return nil
}
