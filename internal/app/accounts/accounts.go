// Package accounts manages linked Spotify accounts and their token lifecycle.
package accounts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/LeafDevs/qbot/internal/infra/spotify"
	"github.com/LeafDevs/qbot/internal/infra/store"
)

// Errors
var (
	// ErrNotLinked means the user has no linked account.
	ErrNotLinked = errors.New("accounts: user not linked")

	// ErrAuthFailure means the user's authorization is gone for good.
	// The linked account has already been deleted when this is returned;
	// callers short-circuit the user for the rest of the cycle.
	ErrAuthFailure = errors.New("accounts: authorization failed")

	// ErrStateInvalid means an authorization state token is unknown or expired.
	ErrStateInvalid = errors.New("accounts: invalid or expired state")
)

// LinkedAccount holds one user's OAuth credentials.
type LinkedAccount struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // absolute epoch ms
}

// Expiry returns the access token expiry as a time.
func (a *LinkedAccount) Expiry() time.Time {
	return time.UnixMilli(a.ExpiresAt)
}

// pendingAuth is a single-use authorization state awaiting the callback.
type pendingAuth struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Config holds token lifecycle tuning.
type Config struct {
	ExpiryMargin    time.Duration // refresh when remaining lifetime drops below this
	RefreshCooldown time.Duration // pause after a refresh before the token is used
	StateTTL        time.Duration // lifetime of a pending authorization state
}

// AuthClient is the slice of the Spotify service the token store uses.
type AuthClient interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Service is the token store. ValidToken is not side-effect-free: a
// rejected refresh deletes the linked account.
type Service struct {
	mu       sync.Mutex
	store    *store.Store
	spotify  AuthClient
	cfg      Config
	accounts map[string]*LinkedAccount
	states   map[string]pendingAuth

	now   func() time.Time
	sleep func(time.Duration)
}

// New creates the service and loads persisted accounts and states.
func New(st *store.Store, sp AuthClient, cfg Config) (*Service, error) {
	s := &Service{
		store:    st,
		spotify:  sp,
		cfg:      cfg,
		accounts: make(map[string]*LinkedAccount),
		states:   make(map[string]pendingAuth),
		now:      time.Now,
		sleep:    time.Sleep,
	}
	if err := st.Load(store.DocUsers, &s.accounts); err != nil {
		return nil, errors.Wrap(err, "failed to load linked accounts")
	}
	if err := st.Load(store.DocOAuthStates, &s.states); err != nil {
		return nil, errors.Wrap(err, "failed to load oauth states")
	}
	return s, nil
}

// IsLinked reports whether the user has a linked account.
func (s *Service) IsLinked(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.accounts[userID]
	return ok
}

// LinkedUserIDs returns all linked user IDs in stable order.
func (s *Service) LinkedUserIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BeginLink issues a single-use state token for the user and returns the
// authorization URL to visit. Expired states are swept opportunistically.
func (s *Service) BeginLink(userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepStatesLocked()

	state := uuid.New().String()
	s.states[state] = pendingAuth{UserID: userID, CreatedAt: s.now()}
	if err := s.store.Save(store.DocOAuthStates, s.states); err != nil {
		return "", errors.Wrap(err, "failed to persist oauth state")
	}

	return s.spotify.AuthURL(state), nil
}

// CompleteLink consumes a state token, exchanges the authorization code,
// and stores the resulting account. Returns the linked user's ID.
func (s *Service) CompleteLink(ctx context.Context, state, code string) (string, error) {
	s.mu.Lock()
	pending, ok := s.states[state]
	if ok {
		delete(s.states, state)
		// The state must not resurrect across a restart.
		if err := s.store.Save(store.DocOAuthStates, s.states); err != nil {
			zlog.Error().Err(err).Msg("accounts: failed to persist consumed state")
		}
	}
	s.mu.Unlock()

	if !ok || s.now().Sub(pending.CreatedAt) > s.cfg.StateTTL {
		return "", ErrStateInvalid
	}

	tok, err := s.spotify.Exchange(ctx, code)
	if err != nil {
		return "", errors.Wrap(err, "failed to exchange authorization code")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[pending.UserID] = accountFromToken(pending.UserID, tok)
	if err := s.store.Save(store.DocUsers, s.accounts); err != nil {
		return "", errors.Wrap(err, "failed to persist linked account")
	}

	zlog.Info().Str("user", pending.UserID).Msg("accounts: user linked")
	return pending.UserID, nil
}

// Unlink deletes the user's linked account. Playback snapshots and message
// refs are owned by their registries; callers cascade those themselves.
func (s *Service) Unlink(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[userID]; !ok {
		return ErrNotLinked
	}
	delete(s.accounts, userID)
	return errors.Wrap(s.store.Save(store.DocUsers, s.accounts), "failed to persist unlink")
}

// ValidToken returns a usable access token for the user, refreshing first
// when the remaining lifetime is below the configured margin.
func (s *Service) ValidToken(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	acct, ok := s.accounts[userID]
	if !ok {
		s.mu.Unlock()
		return "", ErrNotLinked
	}
	token := acct.AccessToken
	refresh := acct.RefreshToken
	fresh := s.now().Add(s.cfg.ExpiryMargin).Before(acct.Expiry())
	s.mu.Unlock()

	if fresh {
		return token, nil
	}
	return s.refresh(ctx, userID, refresh)
}

// ForceRefresh performs an unconditional refresh exchange. The poller uses
// it for its single reactive retry after an access token is rejected
// despite the proactive margin.
func (s *Service) ForceRefresh(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	acct, ok := s.accounts[userID]
	if !ok {
		s.mu.Unlock()
		return "", ErrNotLinked
	}
	refresh := acct.RefreshToken
	s.mu.Unlock()

	return s.refresh(ctx, userID, refresh)
}

// refresh exchanges the refresh token and persists the outcome. A rejected
// refresh token is an implicit unlink.
func (s *Service) refresh(ctx context.Context, userID, refreshToken string) (string, error) {
	tok, err := s.spotify.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, spotify.ErrAuthRevoked) {
			s.mu.Lock()
			delete(s.accounts, userID)
			if saveErr := s.store.Save(store.DocUsers, s.accounts); saveErr != nil {
				zlog.Error().Err(saveErr).Str("user", userID).Msg("accounts: failed to persist revoked unlink")
			}
			s.mu.Unlock()
			zlog.Warn().Str("user", userID).Msg("accounts: refresh token revoked, account removed")
			return "", errors.Mark(err, ErrAuthFailure)
		}
		return "", errors.Wrap(err, "refresh failed")
	}

	s.mu.Lock()
	if acct, ok := s.accounts[userID]; ok {
		acct.AccessToken = tok.AccessToken
		acct.RefreshToken = tok.RefreshToken
		acct.ExpiresAt = tok.Expiry.UnixMilli()
		if err := s.store.Save(store.DocUsers, s.accounts); err != nil {
			s.mu.Unlock()
			return "", errors.Wrap(err, "failed to persist refreshed token")
		}
	}
	s.mu.Unlock()

	// Spread out bursts of near-simultaneous refreshes across users.
	if s.cfg.RefreshCooldown > 0 {
		s.sleep(s.cfg.RefreshCooldown)
	}
	return tok.AccessToken, nil
}

// SweepStates removes expired pending authorization states.
func (s *Service) SweepStates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepStatesLocked()
}

func (s *Service) sweepStatesLocked() int {
	removed := 0
	cutoff := s.now().Add(-s.cfg.StateTTL)
	for state, pending := range s.states {
		if pending.CreatedAt.Before(cutoff) {
			delete(s.states, state)
			removed++
		}
	}
	if removed > 0 {
		if err := s.store.Save(store.DocOAuthStates, s.states); err != nil {
			zlog.Error().Err(err).Msg("accounts: failed to persist state sweep")
		}
		zlog.Debug().Int("removed", removed).Msg("accounts: swept expired oauth states")
	}
	return removed
}

// accountFromToken builds a LinkedAccount from a token response.
func accountFromToken(userID string, tok *oauth2.Token) *LinkedAccount {
	return &LinkedAccount{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.UnixMilli(),
	}
}
