package evolve

import (
	"errors"
	"fmt"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/hurou927/schemashift/internal/plan"
	"github.com/hurou927/schemashift/internal/schema"
)

func nullLogger() *log.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func TestExitCodeAndKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"success", nil, ExitSuccess, ""},
		{"validation", &plan.ValidationError{Table: "t", Problems: []string{"x"}}, ExitAborted, "ValidationError"},
		{"integrity", &IntegrityError{Table: "t", Before: 2, After: 1}, ExitAborted, "IntegrityError"},
		{"not found", fmt.Errorf("describing: %w", &schema.NotFoundError{Table: "t"}), ExitAborted, "NotFound"},
		{"partial swap", &PartialSwapError{Table: "t", Orphans: []string{"t__shift_1"}}, ExitPartialSwap, "PartialSwap"},
		{"wrapped partial swap", fmt.Errorf("stage swap: %w", &PartialSwapError{Table: "t"}), ExitPartialSwap, "PartialSwap"},
		{"other", errors.New("disk full"), ExitAborted, "Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ExitCode(tt.err))
			assert.Equal(t, tt.kind, Kind(tt.err))
		})
	}
}

func TestPartialSwapError_Message(t *testing.T) {
	err := &PartialSwapError{Table: "airports", Orphans: []string{"airports__shift_ab"}, Cause: errors.New("locked")}
	assert.Equal(t,
		"partial swap: table \"airports\" is missing and shadow table(s) airports__shift_ab remain (locked); run `schemashift repair airports` to rename the shadow into place",
		err.Error())
}
