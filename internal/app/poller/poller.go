// Package poller fetches per-user playback and maintains playback snapshots.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/LeafDevs/qbot/internal/app/accounts"
	"github.com/LeafDevs/qbot/internal/domain/track"
	"github.com/LeafDevs/qbot/internal/infra/spotify"
	"github.com/LeafDevs/qbot/internal/infra/store"
)

// PlaybackClient is the slice of the Spotify service the poller uses.
type PlaybackClient interface {
	CurrentlyPlaying(ctx context.Context, accessToken string) (*track.Track, error)
	ArtistImageURL(ctx context.Context, accessToken, artistID string) (string, error)
	TopTracks(ctx context.Context, accessToken string, timeRange spotify.TimeRange, limit int) ([]track.Track, error)
}

// TokenSource is the slice of the accounts service the poller uses.
type TokenSource interface {
	LinkedUserIDs() []string
	ValidToken(ctx context.Context, userID string) (string, error)
	ForceRefresh(ctx context.Context, userID string) (string, error)
}

// Poller polls the playback API for all linked users.
type Poller struct {
	mu        sync.Mutex
	store     *store.Store
	tokens    TokenSource
	client    PlaybackClient
	snapshots map[string]*track.Snapshot
	userDelay time.Duration

	now   func() time.Time
	sleep func(time.Duration)
}

// New creates the poller and loads persisted snapshots.
func New(st *store.Store, tokens TokenSource, client PlaybackClient, userDelay time.Duration) (*Poller, error) {
	p := &Poller{
		store:     st,
		tokens:    tokens,
		client:    client,
		snapshots: make(map[string]*track.Snapshot),
		userDelay: userDelay,
		now:       time.Now,
		sleep:     time.Sleep,
	}
	if err := st.Load(store.DocPlayback, &p.snapshots); err != nil {
		return nil, errors.Wrap(err, "failed to load playback snapshots")
	}
	return p, nil
}

// Poll fetches one user's current playback and overwrites their snapshot.
// A nil track with nil error is the normal "nothing playing" state; errors
// also leave the snapshot with an absent track but are reported so callers
// can log the distinction.
func (p *Poller) Poll(ctx context.Context, userID string) (*track.Track, error) {
	token, err := p.tokens.ValidToken(ctx, userID)
	if err != nil {
		// A never-linked ID leaves no snapshot entry behind.
		if !errors.Is(err, accounts.ErrNotLinked) {
			p.writeSnapshot(userID, nil)
		}
		return nil, errors.Wrap(err, "no usable token")
	}

	current, err := p.client.CurrentlyPlaying(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, spotify.ErrAuthExpired):
			// The proactive margin lost a race; refresh and reissue the
			// same request exactly once.
			current, token, err = p.retryAfterRefresh(ctx, userID)
			if err != nil {
				p.writeSnapshot(userID, nil)
				return nil, err
			}
		case errors.Is(err, spotify.ErrRateLimited):
			// No immediate retry; the next scheduled cycle tries again.
			p.writeSnapshot(userID, nil)
			return nil, err
		default:
			p.writeSnapshot(userID, nil)
			return nil, err
		}
	}

	if current == nil {
		// Nothing playing, or the active item is not a playable track.
		p.writeSnapshot(userID, nil)
		return nil, nil
	}

	// Best-effort artist image; its failure never fails the poll.
	if current.ArtistID != "" {
		if img, imgErr := p.client.ArtistImageURL(ctx, token, current.ArtistID); imgErr != nil {
			zlog.Debug().Err(imgErr).Str("user", userID).Msg("poller: artist image fetch failed")
		} else {
			current.ArtistImageURL = img
		}
	}

	p.writeSnapshot(userID, current)
	return current, nil
}

// retryAfterRefresh performs the single reactive refresh-and-retry.
func (p *Poller) retryAfterRefresh(ctx context.Context, userID string) (*track.Track, string, error) {
	token, err := p.tokens.ForceRefresh(ctx, userID)
	if err != nil {
		return nil, "", errors.Wrap(err, "reactive refresh failed")
	}
	current, err := p.client.CurrentlyPlaying(ctx, token)
	if err != nil {
		return nil, "", errors.Wrap(err, "retry after refresh failed")
	}
	return current, token, nil
}

// PollAll polls every linked user sequentially with a fixed inter-request
// delay to stay under the API's rate limit. One user's failure never
// aborts the rest.
func (p *Poller) PollAll(ctx context.Context) {
	users := p.tokens.LinkedUserIDs()
	for i, userID := range users {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && p.userDelay > 0 {
			p.sleep(p.userDelay)
		}
		if _, err := p.Poll(ctx, userID); err != nil {
			if errors.Is(err, accounts.ErrNotLinked) || errors.Is(err, accounts.ErrAuthFailure) {
				zlog.Warn().Err(err).Str("user", userID).Msg("poller: user skipped")
				continue
			}
			zlog.Error().Err(err).Str("user", userID).Msg("poller: poll failed")
		}
	}
}

// Snapshot returns the user's playback snapshot.
func (p *Poller) Snapshot(userID string) (*track.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap, ok := p.snapshots[userID]
	if !ok {
		return nil, false
	}
	copied := *snap
	return &copied, true
}

// Fingerprint returns the user's last observed track fingerprint. The
// reconciliation loop captures this before polling mutates it.
func (p *Poller) Fingerprint(userID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap, ok := p.snapshots[userID]; ok {
		return snap.Fingerprint
	}
	return ""
}

// ClearSnapshot forgets the user's playback state (unlink cascade).
func (p *Poller) ClearSnapshot(userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.snapshots[userID]; !ok {
		return nil
	}
	delete(p.snapshots, userID)
	return errors.Wrap(p.store.Save(store.DocPlayback, p.snapshots), "failed to persist snapshots")
}

// TopTracks returns the user's most played tracks.
func (p *Poller) TopTracks(ctx context.Context, userID string, timeRange spotify.TimeRange, limit int) ([]track.Track, error) {
	token, err := p.tokens.ValidToken(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "no usable token")
	}
	return p.client.TopTracks(ctx, token, timeRange, limit)
}

// writeSnapshot overwrites the user's snapshot. An absent track keeps the
// previous fingerprint so change detection still sees the last track
// actually observed.
func (p *Poller) writeSnapshot(userID string, current *track.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap, ok := p.snapshots[userID]
	if !ok {
		snap = &track.Snapshot{UserID: userID}
		p.snapshots[userID] = snap
	}
	snap.Track = current
	snap.LastUpdatedAt = p.now()
	if current != nil {
		snap.Fingerprint = current.Fingerprint()
	}

	if err := p.store.Save(store.DocPlayback, p.snapshots); err != nil {
		zlog.Error().Err(err).Str("user", userID).Msg("poller: failed to persist snapshot")
	}
}
