package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/podq/internal/models"
	"github.com/desertthunder/podq/internal/repositories"
	"github.com/desertthunder/podq/internal/shared"
	tu "github.com/desertthunder/podq/internal/testing"
	"golang.org/x/oauth2"
)

type harness struct {
	runner     *Runner
	out        *bytes.Buffer
	svc        *tu.FakePodcastService
	states     *tu.MemoryStateStore
	jobs       *repositories.MemoryJobStore
	configPath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	config := shared.DefaultConfig()
	config.Credentials.Spotify.UserID = "user1"

	svc := tu.NewFakePodcastService()
	released := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.AddShow(models.Show{ID: "s1", Name: "Show One"},
		tu.Episode("long", 30*60000, released),
		tu.Episode("short", 3*60000, released),
	)

	h := &harness{
		out:        &bytes.Buffer{},
		svc:        svc,
		states:     tu.NewMemoryStateStore(),
		jobs:       repositories.NewMemoryJobStore(),
		configPath: filepath.Join(t.TempDir(), "config.toml"),
	}
	h.runner = NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: h.configPath,
		Client:     svc,
		States:     h.states,
		Jobs:       h.jobs,
		Logger:     log.New(io.Discard),
		Output:     h.out,
	})
	return h
}

func (h *harness) run(args ...string) error {
	return newApp(h.runner).Run(context.Background(), append([]string{"podq"}, args...))
}

func (h *harness) state(t *testing.T) *models.UserState {
	t.Helper()
	state, err := h.states.Load(context.Background(), "user1")
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	return state
}

func (h *harness) withPlaylist(t *testing.T, id string) {
	t.Helper()
	state := models.NewUserState()
	state.PlaylistID = id
	h.states.MustSave(t, "user1", state)
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			client := tu.NewFakePodcastService()
			auth := &tu.FakeAuthorizer{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				Client:     client,
				Auth:       auth,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.client != client {
				t.Error("expected client to be set")
			}
			if runner.auth != auth {
				t.Error("expected auth to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})

	t.Run("saveTokens", func(t *testing.T) {
		t.Run("saves tokens successfully", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")

			config := shared.DefaultConfig()
			config.Credentials.Spotify.ClientID = "test_id"
			config.Credentials.Spotify.ClientSecret = "test_secret"

			if err := shared.SaveConfig(configPath, config); err != nil {
				t.Fatalf("failed to create test config: %v", err)
			}

			runner := NewRunner(RunnerOpts{Config: config, ConfigPath: configPath})

			token := &oauth2.Token{AccessToken: "new_access_token", RefreshToken: "new_refresh_token"}
			if err := runner.saveTokens(token); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			loadedConfig, err := shared.LoadConfig(configPath)
			if err != nil {
				t.Fatalf("failed to reload config: %v", err)
			}

			if loadedConfig.Credentials.Spotify.AccessToken != "new_access_token" {
				t.Errorf("expected access token to be updated, got %s", loadedConfig.Credentials.Spotify.AccessToken)
			}
			if loadedConfig.Credentials.Spotify.RefreshToken != "new_refresh_token" {
				t.Errorf("expected refresh token to be updated, got %s", loadedConfig.Credentials.Spotify.RefreshToken)
			}
		})

		t.Run("handles nil config error", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/tmp/test.toml"})
			runner.config = nil

			err := runner.saveTokens(&oauth2.Token{AccessToken: "test"})
			if err == nil || !strings.Contains(err.Error(), "config is nil") {
				t.Errorf("expected nil config error, got %v", err)
			}
		})

		t.Run("handles empty configPath", func(t *testing.T) {
			config := shared.DefaultConfig()
			runner := NewRunner(RunnerOpts{Config: config})

			if err := runner.saveTokens(&oauth2.Token{AccessToken: "new_token", RefreshToken: "new_refresh"}); err != nil {
				t.Fatalf("expected no error with empty path, got %v", err)
			}
			if config.Credentials.Spotify.AccessToken != "new_token" {
				t.Error("expected config to be updated in memory")
			}
		})

		t.Run("handles SaveConfig failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config:     shared.DefaultConfig(),
				ConfigPath: filepath.Join(t.TempDir(), "missing", "config.toml"),
			})

			err := runner.saveTokens(&oauth2.Token{AccessToken: "test"})
			if err == nil || !strings.Contains(err.Error(), "failed to save config") {
				t.Errorf("expected save config error, got %v", err)
			}
		})

		t.Run("handles Update error", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: shared.DefaultConfig()})

			err := runner.saveTokens(nil)
			if err == nil || !strings.Contains(err.Error(), "failed to update spotify configuration") {
				t.Fatalf("expected update error, got %v", err)
			}
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument in chain, got %v", err)
			}
		})

		t.Run("keeps refresh token when a refresh omits it", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Credentials.Spotify.RefreshToken = "original"
			runner := NewRunner(RunnerOpts{Config: config})

			if err := runner.saveTokens(&oauth2.Token{AccessToken: "rotated"}); err != nil {
				t.Fatal(err)
			}
			if config.Credentials.Spotify.RefreshToken != "original" {
				t.Errorf("refresh token = %q", config.Credentials.Spotify.RefreshToken)
			}
		})
	})

	t.Run("spotifyClient", func(t *testing.T) {
		t.Run("requires a stored token", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Auth: &tu.FakeAuthorizer{}, Logger: log.New(io.Discard)})

			if _, err := runner.spotifyClient(context.Background()); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})

		t.Run("requires credentials", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard)})

			if _, err := runner.spotifyClient(context.Background()); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("persists refreshed tokens", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")
			config := shared.DefaultConfig()
			config.Credentials.Spotify.AccessToken = "old"
			config.Credentials.Spotify.RefreshToken = "refresh"

			auth := &tu.FakeAuthorizer{Client: tu.NewFakePodcastService()}
			runner := NewRunner(RunnerOpts{Config: config, ConfigPath: configPath, Auth: auth, Logger: log.New(io.Discard)})

			if _, err := runner.spotifyClient(context.Background()); err != nil {
				t.Fatalf("spotifyClient() error = %v", err)
			}
			if len(auth.Tokens) != 1 || auth.Tokens[0].AccessToken != "old" {
				t.Fatalf("unexpected tokens passed: %v", auth.Tokens)
			}

			auth.OnRefresh(&oauth2.Token{AccessToken: "new", Expiry: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)})

			loaded, err := shared.LoadConfig(configPath)
			if err != nil {
				t.Fatalf("failed to reload config: %v", err)
			}
			if loaded.Credentials.Spotify.AccessToken != "new" || loaded.Credentials.Spotify.RefreshToken != "refresh" {
				t.Errorf("unexpected persisted credentials: %+v", loaded.Credentials.Spotify)
			}
		})
	})
}

func TestCallbackAddr(t *testing.T) {
	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{"http://127.0.0.1:3000/callback", "127.0.0.1:3000", false},
		{"http://localhost:8888/callback", "localhost:8888", false},
		{"http://127.0.0.1/callback", "", true},
		{"http://127.0.0.1:3000/auth", "", true},
		{"::bad", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := callbackAddr(tt.uri)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("callbackAddr(%q) = %q, %v; want %q", tt.uri, got, err, tt.want)
			}
		})
	}
}

func TestCommands(t *testing.T) {
	t.Run("requires an authorized user", func(t *testing.T) {
		h := newHarness(t)
		h.runner.config.Credentials.Spotify.UserID = ""

		if err := h.run("status"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("playlist set", func(t *testing.T) {
		h := newHarness(t)
		seed := models.NewUserState()
		seed.CurrentMinute = 9
		h.states.MustSave(t, "user1", seed)

		if err := h.run("playlist", "set", "https://open.spotify.com/playlist/PL42?si=abc"); err != nil {
			t.Fatalf("playlist set error = %v", err)
		}

		state := h.state(t)
		if state.PlaylistID != "PL42" || state.CurrentMinute != models.CursorUnset {
			t.Errorf("unexpected state %+v", state)
		}
		if !strings.Contains(h.out.String(), "PL42") {
			t.Errorf("unexpected output %q", h.out.String())
		}
	})

	t.Run("playlist set rejects bad input", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("playlist", "set", "not a playlist!"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if err := h.run("playlist", "set"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("state writes refused while a run is registered", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.jobs.Claim(context.Background(), "user1", models.Job{Message: "Starting update..."}); err != nil {
			t.Fatal(err)
		}

		for _, args := range [][]string{
			{"playlist", "set", "PL1"},
			{"settings", "min-duration", "5"},
			{"reset", "--yes"},
		} {
			if err := h.run(args...); !errors.Is(err, shared.ErrJobRunning) {
				t.Errorf("%v: expected ErrJobRunning, got %v", args, err)
			}
		}
	})

	t.Run("settings min-duration clamps", func(t *testing.T) {
		h := newHarness(t)

		for input, want := range map[string]int{"12": 12, "abc": 0, "-5": 0} {
			if err := h.run("settings", "min-duration", input); err != nil {
				t.Fatalf("settings %q error = %v", input, err)
			}
			if got := h.state(t).MinDuration; got != want {
				t.Errorf("min duration for %q = %d, want %d", input, got, want)
			}
		}
	})

	t.Run("update without playlist", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("update"); !errors.Is(err, shared.ErrMissingPlaylist) {
			t.Errorf("expected ErrMissingPlaylist, got %v", err)
		}
		if len(h.svc.Replaced) != 0 {
			t.Error("playlist must not be touched")
		}
	})

	t.Run("update prints progress and result", func(t *testing.T) {
		h := newHarness(t)
		h.withPlaylist(t, "PL1")

		if err := h.run("update"); err != nil {
			t.Fatalf("update error = %v", err)
		}

		out := h.out.String()
		for _, want := range []string{"Scanned: Show One", "Update complete!", "New episodes:  2"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		if uris := h.svc.URIs(); strings.Join(uris, ",") != "spotify:episode:short,spotify:episode:long" {
			t.Errorf("unexpected playlist %v", uris)
		}
		if state := h.state(t); state.ShowProgress["s1"] != "long" || state.LastBatch == nil {
			t.Errorf("state not committed: %+v", state)
		}
		if job, _ := h.jobs.Get(context.Background(), "user1"); job != nil {
			t.Errorf("foreground run should clear its job, got %+v", job)
		}
	})

	t.Run("update quiet hides scan lines", func(t *testing.T) {
		h := newHarness(t)
		h.withPlaylist(t, "PL1")

		if err := h.run("update", "--quiet"); err != nil {
			t.Fatalf("update error = %v", err)
		}
		if strings.Contains(h.out.String(), "Scanned:") {
			t.Errorf("quiet output contains scan lines:\n%s", h.out.String())
		}
	})

	t.Run("update --json", func(t *testing.T) {
		h := newHarness(t)
		h.withPlaylist(t, "PL1")

		if err := h.run("update", "--json"); err != nil {
			t.Fatalf("update error = %v", err)
		}

		var summary runSummary
		if err := json.Unmarshal(h.out.Bytes(), &summary); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, h.out.String())
		}
		if summary.Message != "Update complete!" || summary.PriorityCount != 2 || len(summary.URIs) != 2 || summary.BacklogMinute != models.CursorUnset {
			t.Errorf("unexpected summary %+v", summary)
		}
	})

	t.Run("update refused while a run is registered", func(t *testing.T) {
		h := newHarness(t)
		h.withPlaylist(t, "PL1")
		if _, err := h.jobs.Claim(context.Background(), "user1", models.Job{Message: "Starting update..."}); err != nil {
			t.Fatal(err)
		}

		if err := h.run("update"); !errors.Is(err, shared.ErrJobRunning) {
			t.Errorf("expected ErrJobRunning, got %v", err)
		}
	})

	t.Run("update failure leaves state untouched", func(t *testing.T) {
		h := newHarness(t)
		h.withPlaylist(t, "PL1")
		before := h.states.Raw("user1")
		h.svc.AddErr = shared.ErrAPIRequest

		if err := h.run("update"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if !bytes.Equal(before, h.states.Raw("user1")) {
			t.Error("state changed after failed run")
		}
	})

	t.Run("playlist create --scan", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("playlist", "create", "--scan"); err != nil {
			t.Fatalf("playlist create error = %v", err)
		}

		if len(h.svc.Created) != 1 {
			t.Fatalf("expected one playlist, got %d", len(h.svc.Created))
		}
		pl := h.svc.Created[0]
		if pl.Name != "My Smart Podcast Queue" || pl.Public {
			t.Errorf("unexpected playlist %+v", pl)
		}
		if h.state(t).PlaylistID != "created_1" {
			t.Errorf("playlist not stored")
		}
		if !strings.Contains(h.out.String(), "Update complete!") {
			t.Errorf("expected a run, got:\n%s", h.out.String())
		}
	})

	t.Run("playlist create --name", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run("playlist", "create", "--name", "Commute"); err != nil {
			t.Fatalf("playlist create error = %v", err)
		}
		if h.svc.Created[0].Name != "Commute" || len(h.svc.Replaced) != 0 {
			t.Errorf("unexpected create %+v, replaced %v", h.svc.Created, h.svc.Replaced)
		}
	})

	t.Run("status", func(t *testing.T) {
		h := newHarness(t)
		h.withPlaylist(t, "PL1")

		if err := h.run("status", "--shows"); err != nil {
			t.Fatalf("status error = %v", err)
		}
		for _, want := range []string{"user1", "PL1", "not started", "No shows scanned yet."} {
			if !strings.Contains(h.out.String(), want) {
				t.Errorf("status missing %q:\n%s", want, h.out.String())
			}
		}
	})

	t.Run("status json", func(t *testing.T) {
		h := newHarness(t)
		h.withPlaylist(t, "PL1")

		if err := h.run("status", "--format", "json"); err != nil {
			t.Fatalf("status error = %v", err)
		}
		var decoded models.UserState
		if err := json.Unmarshal(h.out.Bytes(), &decoded); err != nil || decoded.PlaylistID != "PL1" {
			t.Errorf("unexpected status JSON %q: %v", h.out.String(), err)
		}
	})

	t.Run("status rejects unknown format", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run("status", "--format", "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("export", func(t *testing.T) {
		h := newHarness(t)
		h.withPlaylist(t, "PL1")
		path := filepath.Join(t.TempDir(), "state.csv")

		if err := h.run("export", "--format", "csv", "--output", path); err != nil {
			t.Fatalf("export error = %v", err)
		}
		tu.AssertFileExists(t, path)
		if content := tu.MustReadFile(t, path); !strings.HasPrefix(content, "show_id,") {
			t.Errorf("unexpected export:\n%s", content)
		}
	})

	t.Run("reset", func(t *testing.T) {
		h := newHarness(t)
		seed := models.NewUserState()
		seed.PlaylistID = "PL1"
		seed.MinDuration = 4
		seed.CurrentMinute = 20
		seed.ShowProgress["s1"] = "ep"
		seed.CompletedShows["s2"] = "Done"
		h.states.MustSave(t, "user1", seed)

		if err := h.run("reset"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Fatalf("expected confirmation error, got %v", err)
		}
		if err := h.run("reset", "--yes"); err != nil {
			t.Fatalf("reset error = %v", err)
		}

		state := h.state(t)
		if len(state.ShowProgress) != 0 || len(state.CompletedShows) != 0 || state.CurrentMinute != models.CursorUnset {
			t.Errorf("progress not cleared: %+v", state)
		}
		if state.PlaylistID != "PL1" || state.MinDuration != 4 {
			t.Errorf("settings not kept: %+v", state)
		}
	})
}

func TestSQLiteBackends(t *testing.T) {
	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Credentials.Spotify.UserID = "user1"
	config.Database.Path = filepath.Join(dir, "podq.db")
	config.State.Backend = "sqlite"
	config.Jobs.Backend = "sqlite"
	configPath := filepath.Join(dir, "config.toml")
	if err := shared.SaveConfig(configPath, config); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	svc := tu.NewFakePodcastService()
	svc.AddShow(models.Show{ID: "s1", Name: "One"}, tu.Episode("e1", 60000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	newRunner := func(out io.Writer) *Runner {
		return NewRunner(RunnerOpts{
			Config:     config,
			ConfigPath: configPath,
			Client:     svc,
			Logger:     log.New(io.Discard),
			Output:     out,
		})
	}

	ctx := context.Background()
	for _, args := range [][]string{
		{"podq", "setup"},
		{"podq", "playlist", "set", "PL7"},
		{"podq", "settings", "min-duration", "1"},
		{"podq", "update"},
	} {
		if err := newApp(newRunner(io.Discard)).Run(ctx, args); err != nil {
			t.Fatalf("%v error = %v", args, err)
		}
	}

	out := &bytes.Buffer{}
	if err := newApp(newRunner(out)).Run(ctx, []string{"podq", "status", "--format", "json"}); err != nil {
		t.Fatalf("status error = %v", err)
	}

	var state models.UserState
	if err := json.Unmarshal(out.Bytes(), &state); err != nil {
		t.Fatalf("bad status JSON: %v", err)
	}
	if state.PlaylistID != "PL7" || state.MinDuration != 1 || state.ShowProgress["s1"] != "e1" {
		t.Errorf("unexpected persisted state %+v", state)
	}
}
