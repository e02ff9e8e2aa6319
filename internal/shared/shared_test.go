package shared

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Errorf("expected unique IDs, got %s twice", a)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("GenerateID() = %q is not a UUID: %v", a, err)
	}
}

func TestLogger(t *testing.T) {
	t.Run("WithLogger adds fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "user", "u1")
		logger.Info("scan started")

		out := buf.String()
		if !strings.Contains(out, "scan started") || !strings.Contains(out, "user=u1") {
			t.Errorf("unexpected log output: %q", out)
		}
	})

	t.Run("SetLogLevel", func(t *testing.T) {
		tc := []struct {
			name    string
			level   string
			want    log.Level
			wantErr bool
		}{
			{name: "debug", level: "debug", want: log.DebugLevel},
			{name: "warn", level: "warn", want: log.WarnLevel},
			{name: "empty keeps level", level: "", want: log.InfoLevel},
			{name: "unknown", level: "chatty", want: log.InfoLevel, wantErr: true},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				logger := NewLogger(&bytes.Buffer{})
				logger.SetLevel(log.InfoLevel)

				err := SetLogLevel(logger, tt.level)
				if (err != nil) != tt.wantErr {
					t.Fatalf("SetLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				}
				if tt.wantErr && !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				if logger.GetLevel() != tt.want {
					t.Errorf("level = %v, want %v", logger.GetLevel(), tt.want)
				}
			})
		}
	})
}

func TestBrowserCommand(t *testing.T) {
	orig := getRuntime
	t.Cleanup(func() { getRuntime = orig })

	tc := []struct {
		goos    string
		bin     string
		wantErr bool
	}{
		{goos: "darwin", bin: "open"},
		{goos: "linux", bin: "xdg-open"},
		{goos: "windows", bin: "cmd"},
		{goos: "plan9", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.goos, func(t *testing.T) {
			getRuntime = func() string { return tt.goos }

			cmd, err := browserCommand(t.Context(), "https://accounts.spotify.com/authorize")
			if (err != nil) != tt.wantErr {
				t.Fatalf("browserCommand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !strings.HasSuffix(cmd.Args[0], tt.bin) {
				t.Errorf("expected %s launcher, got %v", tt.bin, cmd.Args)
			}
		})
	}
}
