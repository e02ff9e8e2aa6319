package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/podq/internal/shared"
)

type recordedRequest struct {
	Method string
	Path   string
	URIs   []string
}

func newTestClient(t *testing.T, handler func(base string) http.HandlerFunc) (*SpotifyClient, *httptest.Server) {
	t.Helper()

	var base string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(base)(w, r)
	}))
	t.Cleanup(srv.Close)
	base = srv.URL + "/v1"

	return NewSpotifyClient(srv.Client(), base, nil, 2), srv
}

func TestSpotifyClient(t *testing.T) {
	ctx := context.Background()

	t.Run("SavedShows paginates and keeps null entries", func(t *testing.T) {
		client, _ := newTestClient(t, func(base string) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/me/shows" {
					http.NotFound(w, r)
					return
				}
				if r.URL.Query().Get("offset") == "" {
					if r.URL.Query().Get("limit") != "2" {
						t.Errorf("expected limit=2, got %s", r.URL.RawQuery)
					}
					fmt.Fprintf(w, `{"items":[{"show":{"id":"s1","name":"One","total_episodes":10}},null],"total":3,"next":"%s/me/shows?offset=2&limit=2"}`, base)
					return
				}
				fmt.Fprint(w, `{"items":[{"show":{"id":"s3","name":"Three","total_episodes":0}}],"total":3,"next":null}`)
			}
		})

		first, err := client.SavedShows(ctx, "")
		if err != nil {
			t.Fatalf("SavedShows() error = %v", err)
		}
		if len(first.Items) != 2 || first.Items[0].ID != "s1" || first.Items[1] != nil {
			t.Fatalf("unexpected first page: %+v", first.Items)
		}
		if first.Items[0].TotalEpisodes != 10 {
			t.Errorf("expected total_episodes 10, got %d", first.Items[0].TotalEpisodes)
		}
		if !first.HasMore() {
			t.Fatal("expected another page")
		}

		second, err := client.SavedShows(ctx, first.Next)
		if err != nil {
			t.Fatalf("SavedShows(next) error = %v", err)
		}
		if second.HasMore() {
			t.Error("expected last page")
		}
		if len(second.Items) != 1 || second.Items[0].Name != "Three" {
			t.Errorf("unexpected second page: %+v", second.Items)
		}
	})

	t.Run("ShowEpisodes maps feed entries", func(t *testing.T) {
		client, _ := newTestClient(t, func(base string) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/shows/s1/episodes" {
					http.NotFound(w, r)
					return
				}
				fmt.Fprint(w, `{"items":[
					{"id":"e2","name":"Newest","release_date":"2024-03-02","release_date_precision":"day","duration_ms":125000,"resume_point":{"fully_played":true},"uri":"spotify:episode:e2"},
					null,
					{"id":"e1","name":"Older","release_date":"2024-03-01T10:00:00+02:00","duration_ms":185000,"uri":"spotify:episode:e1"}
				],"total":3,"next":null}`)
			}
		})

		page, err := client.ShowEpisodes(ctx, "s1", "")
		if err != nil {
			t.Fatalf("ShowEpisodes() error = %v", err)
		}
		if len(page.Items) != 3 {
			t.Fatalf("expected 3 items, got %d", len(page.Items))
		}
		if page.Items[1] != nil {
			t.Error("expected null feed entry to stay nil")
		}

		newest := page.Items[0]
		if newest.ShowID != "s1" || !newest.FullyPlayed || newest.URI != "spotify:episode:e2" {
			t.Errorf("unexpected episode mapping: %+v", newest)
		}
		if !newest.ReleasedAt.Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected release instant %v", newest.ReleasedAt)
		}

		older := page.Items[2]
		if older.FullyPlayed {
			t.Error("missing resume_point should mean not played")
		}
		if !older.ReleasedAt.Equal(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)) {
			t.Errorf("expected offset to be normalized to UTC, got %v", older.ReleasedAt)
		}
		if older.Bucket() != 3 {
			t.Errorf("expected 3 minute bucket, got %d", older.Bucket())
		}
	})

	t.Run("ReplaceItems and AddItems send uris", func(t *testing.T) {
		var requests []recordedRequest
		client, _ := newTestClient(t, func(base string) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				var body struct {
					URIs []string `json:"uris"`
				}
				data, _ := io.ReadAll(r.Body)
				if err := json.Unmarshal(data, &body); err != nil {
					t.Errorf("invalid body %q: %v", data, err)
				}
				if body.URIs == nil {
					t.Errorf("uris must be an array, got %s", data)
				}
				requests = append(requests, recordedRequest{Method: r.Method, Path: r.URL.Path, URIs: body.URIs})
				w.WriteHeader(http.StatusCreated)
				fmt.Fprint(w, `{"snapshot_id":"x"}`)
			}
		})

		if err := client.ReplaceItems(ctx, "pl1", nil); err != nil {
			t.Fatalf("ReplaceItems() error = %v", err)
		}
		if err := client.AddItems(ctx, "pl1", []string{"spotify:episode:a", "spotify:episode:b"}); err != nil {
			t.Fatalf("AddItems() error = %v", err)
		}
		if err := client.AddItems(ctx, "pl1", nil); err != nil {
			t.Fatalf("AddItems(nil) error = %v", err)
		}

		if len(requests) != 2 {
			t.Fatalf("expected 2 requests, got %d", len(requests))
		}
		if requests[0].Method != http.MethodPut || len(requests[0].URIs) != 0 {
			t.Errorf("unexpected replace request: %+v", requests[0])
		}
		if requests[1].Method != http.MethodPost || requests[1].Path != "/v1/playlists/pl1/tracks" || len(requests[1].URIs) != 2 {
			t.Errorf("unexpected add request: %+v", requests[1])
		}
	})

	t.Run("AddItems rejects oversized chunks", func(t *testing.T) {
		client := NewSpotifyClient(nil, "http://unused.test/v1", nil, 50)
		uris := make([]string, MaxPlaylistItems+1)
		if err := client.AddItems(ctx, "pl1", uris); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		client, _ := newTestClient(t, func(base string) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/v1/users/u1/playlists" {
					http.NotFound(w, r)
					return
				}
				var body map[string]any
				_ = json.NewDecoder(r.Body).Decode(&body)
				if body["public"] != false || body["name"] != "Queue" {
					t.Errorf("unexpected create body: %v", body)
				}
				w.WriteHeader(http.StatusCreated)
				fmt.Fprint(w, `{"id":"new_pl","name":"Queue","description":"d","public":false}`)
			}
		})

		pl, err := client.CreatePlaylist(ctx, "u1", "Queue", false, "d")
		if err != nil {
			t.Fatalf("CreatePlaylist() error = %v", err)
		}
		if pl.ID != "new_pl" {
			t.Errorf("expected playlist new_pl, got %s", pl.ID)
		}
	})

	t.Run("CurrentUser", func(t *testing.T) {
		client, _ := newTestClient(t, func(base string) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"id":"u1","display_name":"User One"}`)
			}
		})

		user, err := client.CurrentUser(ctx)
		if err != nil {
			t.Fatalf("CurrentUser() error = %v", err)
		}
		if user.ID != "u1" || user.DisplayName != "User One" {
			t.Errorf("unexpected user: %+v", user)
		}
	})

	t.Run("error statuses map to sentinels", func(t *testing.T) {
		tt := []struct {
			name   string
			status int
			want   error
		}{
			{name: "unauthorized", status: http.StatusUnauthorized, want: shared.ErrNotAuthenticated},
			{name: "not found", status: http.StatusNotFound, want: shared.ErrPlaylistNotFound},
			{name: "rate limited", status: http.StatusTooManyRequests, want: shared.ErrAPIRequest},
			{name: "server error", status: http.StatusInternalServerError, want: shared.ErrAPIRequest},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				client, _ := newTestClient(t, func(base string) http.HandlerFunc {
					return func(w http.ResponseWriter, r *http.Request) {
						w.WriteHeader(tc.status)
						fmt.Fprintf(w, `{"error":{"status":%d,"message":"nope"}}`, tc.status)
					}
				})

				_, err := client.SavedShows(ctx, "")
				if !errors.Is(err, tc.want) {
					t.Errorf("expected %v, got %v", tc.want, err)
				}
			})
		}
	})

	t.Run("foreign cursor is rejected", func(t *testing.T) {
		client := NewSpotifyClient(nil, "http://api.test/v1", nil, 50)
		_, err := client.SavedShows(ctx, "http://evil.test/v1/me/shows?offset=50")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestParseReleaseDate(t *testing.T) {
	tt := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{input: "2024-05-06T07:08:09Z", want: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)},
		{input: "2024-05-06T07:08:09-05:00", want: time.Date(2024, 5, 6, 12, 8, 9, 0, time.UTC)},
		{input: "2024-05-06T07:08:09", want: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)},
		{input: "2024-05-06", want: time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)},
		{input: "2024-05", want: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{input: "2024", want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{input: "yesterday", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseReleaseDate(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseReleaseDate(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
			if !tc.wantErr && !got.Equal(tc.want) {
				t.Errorf("ParseReleaseDate(%q) = %v, want %v", tc.input, got, tc.want)
			}
			if !tc.wantErr && got.Location() != time.UTC {
				t.Errorf("expected UTC location, got %v", got.Location())
			}
		})
	}
}
