package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	cause := errors.New("catalog missing")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"config", NewConfigError("audit.backend", "unknown backend"), "config error in audit.backend: unknown backend"},
		{"command", NewCommandError("lint", cause), "command lint failed: catalog missing"},
		{"findings", NewFindingsError("test", 3), "test: 3 problem(s) found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	if !errors.Is(NewCommandError("lint", cause), cause) {
		t.Error("CommandError does not unwrap to its cause")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", errors.New("boom"), ExitError},
		{"findings", NewFindingsError("lint", 1), ExitFindings},
		{"wrapped findings", fmt.Errorf("run: %w", NewFindingsError("test", 2)), ExitFindings},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
