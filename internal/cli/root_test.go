package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forcegrid/sfschema/internal/output"
)

func TestNewRootCmdFlags(t *testing.T) {
	cmd := NewRootCmd()

	for _, flag := range []string{"json", "quiet", "styled", "sandbox", "cache-dir", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing persistent flag %q", flag)
	}

	assert.Equal(t, "sfschema", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
	assert.True(t, cmd.SilenceErrors)
}

func TestTransformCobraError(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantMsg  string
		wantCode string
	}{
		{
			name:     "flag needs argument",
			in:       "flag needs an argument: --search",
			wantMsg:  "--search requires a value",
			wantCode: output.CodeInvalidInput,
		},
		{
			name:     "unknown flag",
			in:       "unknown flag: --bogus",
			wantMsg:  "Unknown option: --bogus",
			wantCode: output.CodeInvalidInput,
		},
		{
			name:     "unknown shorthand flag",
			in:       "unknown shorthand flag: 'z' in -z",
			wantMsg:  "Unknown option: -z",
			wantCode: output.CodeInvalidInput,
		},
		{
			name:     "missing positional argument",
			in:       "accepts 1 arg(s), received 0",
			wantMsg:  "Argument required",
			wantCode: output.CodeInvalidInput,
		},
		{
			name:     "required flag not set",
			in:       `required flag(s) "data" not set`,
			wantMsg:  "data required",
			wantCode: output.CodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := transformCobraError(errors.New(tt.in))
			apiErr := output.AsError(got)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestTransformCobraErrorPassesThroughUnknown(t *testing.T) {
	in := errors.New("something else entirely")
	assert.Equal(t, in, transformCobraError(in))
}
