package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/rewindkit/cli/cmd/rewind/cli/paths"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
		{"  info  ", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIsValidLogLevel(t *testing.T) {
	valid := []string{"debug", "INFO", "Warn", "warning", "error", ""}
	for _, s := range valid {
		if !isValidLogLevel(s) {
			t.Errorf("isValidLogLevel(%q) = false, want true", s)
		}
	}
	if isValidLogLevel("verbose") {
		t.Error("isValidLogLevel(\"verbose\") = true, want false")
	}
}

func TestAttrsFromContext(t *testing.T) {
	t.Cleanup(resetLogger)

	ctx := context.Background()
	ctx = WithSession(ctx, "sess-1")
	ctx = WithComponent(ctx, "builder")
	ctx = WithCheckpoint(ctx, "sess-1-0003-100")

	attrs := attrsFromContext(ctx, "")
	if len(attrs) != 3 {
		t.Fatalf("expected 3 attrs, got %d", len(attrs))
	}

	// Global session ID suppresses the context session_id attr
	attrs = attrsFromContext(ctx, "sess-1")
	for _, a := range attrs {
		if a.Key == "session_id" {
			t.Error("session_id should be skipped when set globally")
		}
	}
}

func TestSessionIDFromContext(t *testing.T) {
	if got := SessionIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty session ID from bare context, got %q", got)
	}
	ctx := WithSession(context.Background(), "sess-9")
	if got := SessionIDFromContext(ctx); got != "sess-9" {
		t.Errorf("SessionIDFromContext() = %q, want sess-9", got)
	}
}

func TestInitUsesSettingsLogLevel(t *testing.T) {
	t.Chdir(t.TempDir())
	paths.ResetRepoRootCache()
	t.Cleanup(func() {
		resetLogger()
		SetLogLevelGetter(nil)
		paths.ResetRepoRootCache()
	})
	t.Setenv(LogLevelEnvVar, "")

	SetLogLevelGetter(func() string { return "debug" })
	if err := Init("sess-1"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !getLogger().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected settings log level to enable debug logging")
	}
}

func TestEnvLogLevelOverridesSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	paths.ResetRepoRootCache()
	t.Cleanup(func() {
		resetLogger()
		SetLogLevelGetter(nil)
		paths.ResetRepoRootCache()
	})
	t.Setenv(LogLevelEnvVar, "error")

	SetLogLevelGetter(func() string { return "debug" })
	if err := Init("sess-1"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	lg := getLogger()
	if lg.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected env log level to win over settings")
	}
	if !lg.Enabled(context.Background(), slog.LevelError) {
		t.Error("expected error level to remain enabled")
	}
}
