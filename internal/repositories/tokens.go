package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/podq/internal/shared"
	"golang.org/x/oauth2"
)

// TokenRepository stores one Spotify OAuth2 token per user.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new [TokenRepository] with the given database connection
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Get returns the user's token or [shared.ErrUnknownUser].
func (r *TokenRepository) Get(ctx context.Context, userID string) (*oauth2.Token, error) {
	query := `
		SELECT access_token, refresh_token, token_type, expiry
		FROM tokens
		WHERE user_id = ?
	`

	var (
		access  string
		refresh sql.NullString
		kind    sql.NullString
		expiry  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&access, &refresh, &kind, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownUser, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query token: %w", err)
	}

	token := &oauth2.Token{AccessToken: access, RefreshToken: refresh.String, TokenType: kind.String}
	if expiry.Valid {
		token.Expiry = expiry.Time
	}
	return token, nil
}

// Save upserts the user's token. An empty refresh token keeps the stored one,
// since Spotify omits it from most refresh responses.
func (r *TokenRepository) Save(ctx context.Context, userID string, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidArgument)
	}

	var expiry any
	if !token.Expiry.IsZero() {
		expiry = token.Expiry.UTC()
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO tokens (user_id, access_token, refresh_token, token_type, expiry, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = COALESCE(NULLIF(excluded.refresh_token, ''), tokens.refresh_token),
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, userID, token.AccessToken, token.RefreshToken, token.Type(), expiry, now, now)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Delete forgets the user's token. Scan state is left in place.
func (r *TokenRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
