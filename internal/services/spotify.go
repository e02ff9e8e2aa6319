// Spotify API implementation of [PodcastService]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/podq/internal/models"
	"github.com/desertthunder/podq/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultRedirectURI = "http://127.0.0.1:3000/callback"
	defaultPageSize    = 50
	defaultRPS         = 10
)

// Scopes requested during authorization: library read for shows and playback state, playlist write for the queue.
var Scopes = []string{
	"user-library-read",
	"user-read-playback-position",
	"playlist-modify-public",
	"playlist-modify-private",
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyShow represents a simplified show object.
type SpotifyShow struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Publisher     string `json:"publisher"`
	TotalEpisodes int    `json:"total_episodes"`
	URI           string `json:"uri"`
}

// SpotifySavedShow represents a show saved in the user's library.
type SpotifySavedShow struct {
	AddedAt string       `json:"added_at"`
	Show    *SpotifyShow `json:"show"`
}

type resumePoint struct {
	FullyPlayed      bool `json:"fully_played"`
	ResumePositionMS int  `json:"resume_position_ms"`
}

// SpotifyEpisode represents a simplified episode object from a show's feed.
type SpotifyEpisode struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	ReleaseDate          string       `json:"release_date"`
	ReleaseDatePrecision string       `json:"release_date_precision"`
	DurationMS           int          `json:"duration_ms"`
	ResumePoint          *resumePoint `json:"resume_point"`
	URI                  string       `json:"uri"`
}

// SpotifyPlaylist represents the playlist object returned on creation.
type SpotifyPlaylist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
	URI         string `json:"uri"`
}

// SpotifyPaging is Spotify's paging envelope. Items may include null entries.
type SpotifyPaging[T any] struct {
	Items    []*T    `json:"items"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

type spotifyError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyService holds the OAuth2 application config and builds per-user [SpotifyClient] values.
type SpotifyService struct {
	config     *oauth2.Config
	baseURL    string
	httpClient *http.Client
	pageSize   int
	rps        float64
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:   config,
		baseURL:  spotifyBaseURL,
		pageSize: defaultPageSize,
		rps:      defaultRPS,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// SetPageSize sets the page size for listing endpoints (1..50).
func (s *SpotifyService) SetPageSize(n int) {
	if n > 0 && n <= 50 {
		s.pageSize = n
	}
}

// SetRateLimit sets the sustained requests per second for clients built afterwards.
func (s *SpotifyService) SetRateLimit(rps float64) {
	if rps > 0 {
		s.rps = rps
	}
}

// SetBaseURL points API calls at another host, e.g. an [httptest.Server].
func (s *SpotifyService) SetBaseURL(u string) {
	s.baseURL = strings.TrimRight(u, "/")
}

// SetHTTPClient sets the transport used for token and API requests.
func (s *SpotifyService) SetHTTPClient(c *http.Client) {
	s.httpClient = c
}

// SetTokenURL overrides the OAuth2 token endpoint.
func (s *SpotifyService) SetTokenURL(u string) {
	s.config.Endpoint.TokenURL = u
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// OAuthConfig exposes the application config for callback handlers.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// Exchange trades an authorization code for a token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	if s.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// Client returns an API client acting as the owner of token.
//
// onRefresh, when non-nil, receives every token that differs from the last one seen.
func (s *SpotifyService) Client(ctx context.Context, token *oauth2.Token, onRefresh func(*oauth2.Token)) *SpotifyClient {
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(s.oauthContext(ctx), token),
		callback: onRefresh,
		last:     token.AccessToken,
	}
	httpClient := oauth2.NewClient(s.oauthContext(ctx), source)
	return NewSpotifyClient(httpClient, s.baseURL, rate.NewLimiter(rate.Limit(s.rps), 1), s.pageSize)
}

// NewClient implements [Authorizer].
func (s *SpotifyService) NewClient(ctx context.Context, token *oauth2.Token, onRefresh func(*oauth2.Token)) PodcastService {
	return s.Client(ctx, token, onRefresh)
}

// SpotifyClient implements [PodcastService] against the Spotify Web API for a single user.
type SpotifyClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	pageSize   int
}

// NewSpotifyClient creates a client with an already-authorized httpClient.
//
// A nil limiter disables pacing.
func NewSpotifyClient(httpClient *http.Client, baseURL string, limiter *rate.Limiter, pageSize int) *SpotifyClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	if pageSize <= 0 || pageSize > 50 {
		pageSize = defaultPageSize
	}
	return &SpotifyClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    limiter,
		pageSize:   pageSize,
	}
}

// resolve turns an endpoint path or a Next cursor into an absolute URL on the API host.
func (c *SpotifyClient) resolve(endpoint string) (string, error) {
	if strings.HasPrefix(endpoint, "/") {
		return c.baseURL + endpoint, nil
	}
	if strings.HasPrefix(endpoint, c.baseURL+"/") {
		return endpoint, nil
	}
	return "", fmt.Errorf("%w: cursor %q is not on %s", shared.ErrInvalidArgument, endpoint, c.baseURL)
}

// doRequest performs an authenticated HTTP request to the Spotify API.
func (c *SpotifyClient) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	apiURL, err := c.resolve(endpoint)
	if err != nil {
		return err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func statusError(resp *http.Response) error {
	msg := http.StatusText(resp.StatusCode)
	var apiErr spotifyError
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil && json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify API status %d: %s", shared.ErrNotAuthenticated, resp.StatusCode, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: spotify API status %d: %s", shared.ErrPlaylistNotFound, resp.StatusCode, msg)
	default:
		return fmt.Errorf("%w: spotify API status %d: %s", shared.ErrAPIRequest, resp.StatusCode, msg)
	}
}

func (c *SpotifyClient) firstPage(endpoint, cursor string) string {
	if cursor != "" {
		return cursor
	}
	return fmt.Sprintf("%s?limit=%d", endpoint, c.pageSize)
}

// CurrentUser retrieves the current authenticated user's profile.
func (c *SpotifyClient) CurrentUser(ctx context.Context) (*models.User, error) {
	var user SpotifyUser
	if err := c.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &models.User{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// SavedShows retrieves one page of the user's saved shows.
func (c *SpotifyClient) SavedShows(ctx context.Context, cursor string) (*Page[models.Show], error) {
	var response SpotifyPaging[SpotifySavedShow]
	if err := c.doRequest(ctx, http.MethodGet, c.firstPage("/me/shows", cursor), nil, &response); err != nil {
		return nil, err
	}

	page := &Page[models.Show]{Total: response.Total, Items: make([]*models.Show, 0, len(response.Items))}
	for _, item := range response.Items {
		if item == nil || item.Show == nil {
			page.Items = append(page.Items, nil)
			continue
		}
		page.Items = append(page.Items, &models.Show{
			ID:            item.Show.ID,
			Name:          item.Show.Name,
			TotalEpisodes: item.Show.TotalEpisodes,
		})
	}
	if response.Next != nil {
		page.Next = *response.Next
	}
	return page, nil
}

// ShowEpisodes retrieves one page of a show's episodes, newest first.
func (c *SpotifyClient) ShowEpisodes(ctx context.Context, showID, cursor string) (*Page[models.Episode], error) {
	endpoint := c.firstPage(fmt.Sprintf("/shows/%s/episodes", url.PathEscape(showID)), cursor)

	var response SpotifyPaging[SpotifyEpisode]
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	page := &Page[models.Episode]{Total: response.Total, Items: make([]*models.Episode, 0, len(response.Items))}
	for _, item := range response.Items {
		if item == nil {
			page.Items = append(page.Items, nil)
			continue
		}
		page.Items = append(page.Items, item.toModel(showID))
	}
	if response.Next != nil {
		page.Next = *response.Next
	}
	return page, nil
}

func (e *SpotifyEpisode) toModel(showID string) *models.Episode {
	// Unparseable dates fall back to the zero time, which always classifies as backlog.
	released, _ := ParseReleaseDate(e.ReleaseDate)
	ep := &models.Episode{
		ID:         e.ID,
		ShowID:     showID,
		Title:      e.Name,
		ReleasedAt: released,
		DurationMS: e.DurationMS,
		URI:        e.URI,
	}
	if e.ResumePoint != nil {
		ep.FullyPlayed = e.ResumePoint.FullyPlayed
	}
	return ep
}

type itemsBody struct {
	URIs []string `json:"uris"`
}

// ReplaceItems replaces all items of a playlist. An empty uris clears it.
func (c *SpotifyClient) ReplaceItems(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) > MaxPlaylistItems {
		return fmt.Errorf("%w: at most %d items per request", shared.ErrInvalidArgument, MaxPlaylistItems)
	}
	if uris == nil {
		uris = []string{}
	}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return c.doRequest(ctx, http.MethodPut, endpoint, itemsBody{URIs: uris}, nil)
}

// AddItems appends up to [MaxPlaylistItems] URIs to a playlist.
func (c *SpotifyClient) AddItems(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > MaxPlaylistItems {
		return fmt.Errorf("%w: at most %d items per request", shared.ErrInvalidArgument, MaxPlaylistItems)
	}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return c.doRequest(ctx, http.MethodPost, endpoint, itemsBody{URIs: uris}, nil)
}

// CreatePlaylist creates a playlist owned by ownerID.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, ownerID, name string, public bool, description string) (*models.Playlist, error) {
	body := map[string]any{
		"name":        name,
		"public":      public,
		"description": description,
	}
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(ownerID))

	var created SpotifyPlaylist
	if err := c.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return nil, err
	}

	return &models.Playlist{
		ID:          created.ID,
		Name:        created.Name,
		Description: created.Description,
		Public:      created.Public,
	}, nil
}

var releaseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseReleaseDate parses an ISO-8601 release date.
//
// Values with a 'Z' or numeric offset keep that zone; values without zone information are UTC.
// The result is always expressed in UTC.
func ParseReleaseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range releaseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: release date %q", shared.ErrInvalidInput, s)
}
