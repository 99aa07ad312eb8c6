package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hurou927/schemashift/internal/schema"
)

const airportsPlan = `
source: airports
target:
  - {name: id, type: INTEGER, primary_key: true}
  - {name: code, type: TEXT, unique: true}
  - {name: name, type: TEXT}
  - {name: country, type: TEXT, default: "'US'"}
  - {name: notes, type: TEXT, nullable: true}
  - name: hub_id
    type: INTEGER
    nullable: true
    references: {table: airports, column: id}
mapping:
  id: id
  code: {column: code}
  name: airport_name
  country: {value: CA}
  notes: {value: null}
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(airportsPlan))
	require.NoError(t, err)

	assert.Equal(t, "airports", p.Source)
	require.Len(t, p.Target, 6)
	assert.True(t, p.Target[0].PrimaryKey)
	assert.False(t, p.Target[0].Nullable)
	assert.True(t, p.Target[1].Unique)
	require.NotNil(t, p.Target[3].Default)
	assert.Equal(t, "'US'", *p.Target[3].Default)
	assert.True(t, p.Target[4].Nullable)

	assert.Equal(t, FromColumn("id"), p.Mapping["id"])
	assert.Equal(t, FromColumn("code"), p.Mapping["code"])
	assert.Equal(t, FromColumn("airport_name"), p.Mapping["name"])
	assert.Equal(t, FromValue("CA"), p.Mapping["country"])
	assert.Equal(t, FromValue(nil), p.Mapping["notes"])
	assert.Equal(t, "NULL", p.Mapping["notes"].String())
	assert.Equal(t, "CA (constant)", p.Mapping["country"].String())

	fks := p.ForeignKeys()
	require.Len(t, fks, 1)
	assert.Equal(t, schema.ForeignKey{
		ChildTable:    "airports",
		ChildColumns:  []string{"hub_id"},
		ParentTable:   "airports",
		ParentColumns: []string{"id"},
	}, fks[0])
	assert.True(t, fks[0].IsSelfRef())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown top-level key", "source: a\ntargets: []\n", "field targets not found"},
		{"column and value", "source: a\nmapping:\n  x: {column: y, value: 1}\n", "both column and value"},
		{"empty map", "source: a\nmapping:\n  x: {}\n", "needs a column or a value"},
		{"unknown mapping key", "source: a\nmapping:\n  x: {col: y}\n", `unknown mapping key "col"`},
		{"sequence mapping", "source: a\nmapping:\n  x: [y]\n", "must be a column name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airports.yaml")
	require.NoError(t, os.WriteFile(path, []byte(airportsPlan), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "airports", p.Source)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading plan file")
}

func TestMapping_MarshalYAML(t *testing.T) {
	out, err := yaml.Marshal(map[string]Mapping{
		"a": FromColumn("b"),
		"c": FromValue(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "a: b\nc:\n    value: 3\n", string(out))
}

func liveAirports() *schema.Table {
	return &schema.Table{
		Name: "airports",
		Columns: []schema.Column{
			{Name: "id", Type: "INTEGER", Nullable: true, PrimaryKey: true},
			{Name: "code", Type: "VARCHAR(8)", Unique: true},
			{Name: "airport_name", Type: "VARCHAR(255)"},
			{Name: "created_by", Type: "INTEGER", Nullable: true},
		},
	}
}

func TestValidate(t *testing.T) {
	p, err := Parse([]byte(airportsPlan))
	require.NoError(t, err)
	assert.NoError(t, p.Validate(liveAirports(), nil))
}

func TestValidate_Problems(t *testing.T) {
	dependents := []schema.ForeignKey{{
		ChildTable:    "flights",
		ChildColumns:  []string{"origin_code"},
		ParentTable:   "airports",
		ParentColumns: []string{"code"},
	}}

	tests := []struct {
		name string
		plan *Plan
		want []string
	}{
		{
			name: "empty target",
			plan: &Plan{Source: "airports"},
			want: []string{"target has no columns"},
		},
		{
			name: "duplicate and invalid names",
			plan: &Plan{
				Source: "airports",
				Target: []TargetColumn{
					{Column: schema.Column{Name: "id", Type: "INTEGER", Nullable: true}},
					{Column: schema.Column{Name: "id", Type: "INTEGER", Nullable: true}},
					{Column: schema.Column{Name: "bad name", Type: "TEXT", Nullable: true}},
				},
			},
			want: []string{
				`target column "id" is declared twice`,
				`target column "bad name": name must match [a-zA-Z_][a-zA-Z0-9_]*`,
			},
		},
		{
			name: "mapping to unknown target",
			plan: &Plan{
				Source:  "airports",
				Target:  []TargetColumn{{Column: schema.Column{Name: "code", Type: "TEXT", Nullable: true}}},
				Mapping: map[string]Mapping{"code": FromColumn("code"), "ghost": FromColumn("id")},
			},
			want: []string{`mapping names "ghost", which is not a target column`},
		},
		{
			name: "default with a comment",
			plan: &Plan{
				Source: "airports",
				Target: []TargetColumn{{Column: schema.Column{Name: "code", Type: "TEXT", Default: ptr("'x' -- y")}}},
			},
			want: []string{`target column "code": default expression "'x' -- y" contains invalid characters`},
		},
		{
			name: "drops a referenced column",
			plan: &Plan{
				Source:  "airports",
				Target:  []TargetColumn{{Column: schema.Column{Name: "id", Type: "INTEGER", PrimaryKey: true}}},
				Mapping: map[string]Mapping{"id": FromColumn("id")},
			},
			want: []string{"flights.origin_code references airports.code, which the target drops"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate(liveAirports(), dependents)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			for _, want := range tt.want {
				assert.Contains(t, verr.Problems, want)
			}
		})
	}
}

func TestValidate_SameShape(t *testing.T) {
	live := liveAirports()
	p := &Plan{Source: "airports", Mapping: map[string]Mapping{}}
	for _, c := range live.Columns {
		p.Target = append(p.Target, TargetColumn{Column: c})
		p.Mapping[c.Name] = FromColumn(c.Name)
	}

	err := p.Validate(live, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"airports already has the target shape"}, verr.Problems)
}

func samePlan(live *schema.Table) *Plan {
	p := &Plan{Source: live.Name, Mapping: map[string]Mapping{}}
	for _, c := range live.Columns {
		p.Target = append(p.Target, TargetColumn{Column: c})
		p.Mapping[c.Name] = FromColumn(c.Name)
	}
	return p
}

func TestValidate_DefaultOnlyChange(t *testing.T) {
	live := liveAirports()
	p := samePlan(live)
	p.Target[2].Default = ptr("'unnamed'")
	assert.NoError(t, p.Validate(live, nil))

	live.Columns[2].Default = ptr("'unnamed'::character varying")
	assert.Error(t, p.Validate(live, nil))
}

func TestValidate_ForeignKeyOnlyChange(t *testing.T) {
	live := liveAirports()
	p := samePlan(live)
	p.Target[3].References = &Reference{Table: "users", Column: "id"}
	assert.NoError(t, p.Validate(live, nil))

	live.ForeignKeys = []schema.ForeignKey{{
		Name: "fk_0", ChildTable: "airports", ChildColumns: []string{"created_by"},
		ParentTable: "users", ParentColumns: []string{"id"},
	}}
	err := p.Validate(live, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"airports already has the target shape"}, verr.Problems)
}

func ptr(s string) *string { return &s }
