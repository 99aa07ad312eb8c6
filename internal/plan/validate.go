package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hurou927/schemashift/internal/ddl"
	"github.com/hurou927/schemashift/internal/schema"
)

// ValidationError lists every problem found in a plan. Nothing has been
// modified when it is returned.
type ValidationError struct {
	Table    string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("plan for %s is invalid: %s", e.Table, strings.Join(e.Problems, "; "))
}

// Validate checks the plan against the live source table. dependents are FK
// constraints of other tables that reference the source.
func (p *Plan) Validate(live *schema.Table, dependents []schema.ForeignKey) error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if err := ddl.ValidateIdentifier(p.Source); err != nil {
		addf("source: %v", err)
	}
	if len(p.Target) == 0 {
		addf("target has no columns")
	}

	targets := make(map[string]TargetColumn, len(p.Target))
	for _, t := range p.Target {
		if _, dup := targets[t.Name]; dup {
			addf("target column %q is declared twice", t.Name)
			continue
		}
		targets[t.Name] = t

		if err := ddl.ValidateIdentifier(t.Name); err != nil {
			addf("target column %q: %v", t.Name, err)
		}
		if err := ddl.ValidateColumnType(t.Type); err != nil {
			addf("target column %q: %v", t.Name, err)
		}
		if t.Default != nil {
			if err := ddl.ValidateDefault(*t.Default); err != nil {
				addf("target column %q: %v", t.Name, err)
			}
		}
		if t.References != nil {
			if err := ddl.ValidateIdentifier(t.References.Table); err != nil {
				addf("target column %q references: %v", t.Name, err)
			}
			if err := ddl.ValidateIdentifier(t.References.Column); err != nil {
				addf("target column %q references: %v", t.Name, err)
			}
		}

		m, mapped := p.Mapping[t.Name]
		switch {
		case !mapped:
			if !t.Nullable && !t.HasDefault() {
				addf("target column %q is NOT NULL without a default and has no mapping", t.Name)
			}
		case m.IsValue:
			if m.Value == nil && !t.Nullable {
				addf("target column %q is NOT NULL but is mapped to a NULL constant", t.Name)
			}
		default:
			if _, ok := live.Column(m.Column); !ok {
				addf("target column %q maps from %q, which does not exist in %s", t.Name, m.Column, live.Name)
			}
		}
	}

	for _, name := range sortedKeys(p.Mapping) {
		if _, ok := targets[name]; !ok {
			addf("mapping names %q, which is not a target column", name)
		}
	}

	for _, fk := range dependents {
		for i, col := range fk.ParentColumns {
			if col == "" {
				continue
			}
			if _, ok := targets[col]; !ok {
				addf("%s.%s references %s.%s, which the target drops",
					fk.ChildTable, fk.ChildColumns[i], live.Name, col)
			}
		}
	}

	if len(problems) == 0 &&
		schema.SameShape(live.Columns, p.Columns()) &&
		schema.SameForeignKeys(live.ForeignKeys, p.ForeignKeys()) {
		addf("%s already has the target shape", live.Name)
	}

	if len(problems) > 0 {
		return &ValidationError{Table: live.Name, Problems: problems}
	}
	return nil
}

func sortedKeys(m map[string]Mapping) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
