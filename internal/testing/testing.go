// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/podq/internal/models"
	"github.com/desertthunder/podq/internal/services"
	"golang.org/x/oauth2"
)

// FakePodcastService is an in-memory [services.PodcastService].
//
// Shows and feeds are served in pages of PageSize. A nil entry in Shows or a feed is returned as a null item.
type FakePodcastService struct {
	mu sync.Mutex

	User     models.User
	PageSize int
	Shows    []*models.Show
	Feeds    map[string][]*models.Episode // show id → newest-first feed

	SavedShowsErr error
	EpisodeErrs   map[string]error // show id → error returned when its feed is listed
	ReplaceErr    error
	AddErr        error
	CreateErr     error
	Gate          chan struct{} // when set, episode listing blocks until it is closed

	EpisodeCalls map[string]int // show id → pages fetched
	Replaced     []string       // playlist ids passed to ReplaceItems
	Added        [][]string     // every AddItems chunk
	Created      []models.Playlist
}

// NewFakePodcastService returns a fake for user "user1" serving pages of two items.
func NewFakePodcastService() *FakePodcastService {
	return &FakePodcastService{
		User:         models.User{ID: "user1", DisplayName: "Test User"},
		PageSize:     2,
		Feeds:        map[string][]*models.Episode{},
		EpisodeErrs:  map[string]error{},
		EpisodeCalls: map[string]int{},
	}
}

// AddShow registers a show and its newest-first feed.
func (f *FakePodcastService) AddShow(show models.Show, feed ...*models.Episode) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if show.TotalEpisodes == 0 {
		show.TotalEpisodes = len(feed)
	}
	f.Shows = append(f.Shows, &show)
	for _, ep := range feed {
		if ep != nil {
			ep.ShowID = show.ID
		}
	}
	f.Feeds[show.ID] = feed
}

// URIs returns every URI added across all chunks, in order.
func (f *FakePodcastService) URIs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var all []string
	for _, chunk := range f.Added {
		all = append(all, chunk...)
	}
	return all
}

func paginate[T any](items []*T, cursor string, size int) (*services.Page[T], error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(cursor, "offset:"))
		if err != nil {
			return nil, fmt.Errorf("bad cursor %q", cursor)
		}
		offset = n
	}
	if size <= 0 {
		size = len(items)
	}

	end := min(offset+size, len(items))
	page := &services.Page[T]{Total: len(items)}
	if offset < end {
		page.Items = items[offset:end]
	}
	if end < len(items) {
		page.Next = fmt.Sprintf("offset:%d", end)
	}
	return page, nil
}

func (f *FakePodcastService) SavedShows(_ context.Context, cursor string) (*services.Page[models.Show], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SavedShowsErr != nil {
		return nil, f.SavedShowsErr
	}
	return paginate(f.Shows, cursor, f.PageSize)
}

func (f *FakePodcastService) ShowEpisodes(_ context.Context, showID, cursor string) (*services.Page[models.Episode], error) {
	if f.Gate != nil {
		<-f.Gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.EpisodeCalls[showID]++
	if err := f.EpisodeErrs[showID]; err != nil {
		return nil, err
	}
	return paginate(f.Feeds[showID], cursor, f.PageSize)
}

func (f *FakePodcastService) ReplaceItems(_ context.Context, playlistID string, uris []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReplaceErr != nil {
		return f.ReplaceErr
	}
	if len(uris) > services.MaxPlaylistItems {
		return fmt.Errorf("too many items: %d", len(uris))
	}
	f.Replaced = append(f.Replaced, playlistID)
	f.Added = nil
	if len(uris) > 0 {
		f.Added = append(f.Added, append([]string(nil), uris...))
	}
	return nil
}

func (f *FakePodcastService) AddItems(_ context.Context, _ string, uris []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.AddErr != nil {
		return f.AddErr
	}
	if len(uris) > services.MaxPlaylistItems {
		return fmt.Errorf("too many items: %d", len(uris))
	}
	f.Added = append(f.Added, append([]string(nil), uris...))
	return nil
}

func (f *FakePodcastService) CreatePlaylist(_ context.Context, ownerID, name string, public bool, description string) (*models.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	pl := models.Playlist{ID: fmt.Sprintf("created_%d", len(f.Created)+1), Name: name, Description: description, Public: public}
	f.Created = append(f.Created, pl)
	return &pl, nil
}

func (f *FakePodcastService) CurrentUser(context.Context) (*models.User, error) {
	u := f.User
	return &u, nil
}

// Episode builds a feed entry with URI "spotify:episode:<id>".
func Episode(id string, durationMS int, released time.Time) *models.Episode {
	return &models.Episode{
		ID:         id,
		Title:      "Episode " + id,
		ReleasedAt: released,
		DurationMS: durationMS,
		URI:        "spotify:episode:" + id,
	}
}

// MemoryStateStore is a [models.StateStore] that keeps the encoded JSON per user.
type MemoryStateStore struct {
	mu      sync.Mutex
	docs    map[string][]byte
	SaveErr error
	Saves   int
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{docs: map[string][]byte{}}
}

func (s *MemoryStateStore) Load(_ context.Context, userID string) (*models.UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.docs[userID]
	if !ok {
		return models.NewUserState(), nil
	}
	state := models.NewUserState()
	if err := json.Unmarshal(data, state); err != nil {
		return models.NewUserState(), nil
	}
	state.Normalize()
	return state, nil
}

func (s *MemoryStateStore) Save(_ context.Context, userID string, state *models.UserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SaveErr != nil {
		return s.SaveErr
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.docs[userID] = data
	s.Saves++
	return nil
}

// Raw returns the last saved document for userID.
func (s *MemoryStateStore) Raw(userID string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.docs[userID]...)
}

// MustSave stores state or fails the test.
func (s *MemoryStateStore) MustSave(t *testing.T, userID string, state *models.UserState) {
	t.Helper()
	if err := s.Save(context.Background(), userID, state); err != nil {
		t.Fatalf("failed to seed state: %v", err)
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// FakeAuthorizer is a [services.Authorizer] that hands out Client for any token.
type FakeAuthorizer struct {
	mu sync.Mutex

	Client      services.PodcastService
	Token       *oauth2.Token
	ExchangeErr error

	Codes     []string        // codes passed to Exchange
	Tokens    []*oauth2.Token // tokens passed to NewClient
	OnRefresh func(*oauth2.Token)
}

func (a *FakeAuthorizer) GetAuthURL(state string) string {
	return "https://accounts.example.test/authorize?state=" + state
}

func (a *FakeAuthorizer) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Codes = append(a.Codes, code)
	if a.ExchangeErr != nil {
		return nil, a.ExchangeErr
	}
	return a.Token, nil
}

func (a *FakeAuthorizer) NewClient(_ context.Context, token *oauth2.Token, onRefresh func(*oauth2.Token)) services.PodcastService {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Tokens = append(a.Tokens, token)
	a.OnRefresh = onRefresh
	return a.Client
}
