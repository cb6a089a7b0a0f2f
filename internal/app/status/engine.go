// Package status reconciles playback snapshots against one persistent
// Discord status message per user.
package status

import (
	"context"
	"math/rand"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/LeafDevs/qbot/internal/app/registry"
	"github.com/LeafDevs/qbot/internal/domain/track"
	"github.com/LeafDevs/qbot/internal/infra/discord"
)

// Messenger is the slice of the Discord client the engine uses.
type Messenger interface {
	BotUserID() string
	ChannelExists(ctx context.Context, channelID string) error
	Message(ctx context.Context, channelID, messageID string) (*discord.Message, error)
	RecentMessages(ctx context.Context, channelID string, limit int) ([]discord.Message, error)
	Send(ctx context.Context, channelID string, r discord.Render) (string, error)
	Edit(ctx context.Context, channelID, messageID string, r discord.Render) error
	DisplayName(ctx context.Context, userID string) (string, error)
}

// PlaybackSource is the slice of the poller the engine uses.
type PlaybackSource interface {
	PollAll(ctx context.Context)
	Snapshot(userID string) (*track.Snapshot, bool)
	Fingerprint(userID string) string
}

// LinkRegistry is the slice of the accounts service the engine uses.
type LinkRegistry interface {
	LinkedUserIDs() []string
	SweepStates() int
}

// Config holds the engine's tunables.
type Config struct {
	// HistoryScanLimit bounds how many recent channel messages the
	// discovery fallback inspects.
	HistoryScanLimit int
	// HypeChance is the probability of the attention prefix firing on a
	// track change by a hype artist.
	HypeChance  float64
	HypeArtists []string
	HypePrefix  string
}

// Engine runs the per-cycle reconciliation state machine.
type Engine struct {
	cfg      Config
	msgr     Messenger
	playback PlaybackSource
	links    LinkRegistry
	reg      *registry.Registry

	chance func() float64
}

// NewEngine wires the reconciliation engine.
func NewEngine(cfg Config, msgr Messenger, playback PlaybackSource, links LinkRegistry, reg *registry.Registry) *Engine {
	if cfg.HistoryScanLimit <= 0 {
		cfg.HistoryScanLimit = 100
	}
	return &Engine{
		cfg:      cfg,
		msgr:     msgr,
		playback: playback,
		links:    links,
		reg:      reg,
		chance:   rand.Float64,
	}
}

// Cycle runs one full poll-and-reconcile pass. Previous fingerprints are
// captured before polling mutates the snapshots, then every user is
// reconciled in isolation.
func (e *Engine) Cycle(ctx context.Context) {
	// Abandoned link attempts expire even when nobody links again.
	e.links.SweepStates()

	users := e.links.LinkedUserIDs()
	if len(users) == 0 {
		return
	}

	previous := make(map[string]string, len(users))
	for _, userID := range users {
		previous[userID] = e.playback.Fingerprint(userID)
	}

	e.playback.PollAll(ctx)

	for _, userID := range users {
		if ctx.Err() != nil {
			return
		}
		if err := e.reconcileUser(ctx, userID, previous[userID]); err != nil {
			zlog.Error().Err(err).Str("user", userID).Msg("status: reconcile failed")
		}
	}
}

// reconcileUser applies the state machine for one user.
func (e *Engine) reconcileUser(ctx context.Context, userID, previousFingerprint string) error {
	snap, ok := e.playback.Snapshot(userID)
	if !ok || snap.Track == nil {
		zlog.Debug().Str("user", userID).Msg("status: nothing playing")
		return nil
	}
	current := snap.Track

	channelID, ok := e.destinationChannel(userID)
	if !ok {
		zlog.Debug().Str("user", userID).Msg("status: no status channel configured")
		return nil
	}

	displayName, err := e.msgr.DisplayName(ctx, userID)
	if err != nil {
		// Profile lookup failure skips the user for this cycle only.
		return errors.Wrap(err, "failed to resolve display name")
	}

	changed := snap.Fingerprint != previousFingerprint
	render := e.render(userID, displayName, current, changed)

	if messageID, ok := e.reg.UserMessage(userID); ok {
		err := e.msgr.Edit(ctx, channelID, messageID, render)
		if err == nil {
			return nil
		}
		if !errors.Is(err, discord.ErrNotFound) {
			return errors.Wrap(err, "failed to edit status message")
		}
		// Message deleted out of band; replace it.
		return e.sendNew(ctx, userID, channelID, render)
	}

	if adopted, ok := e.discover(ctx, channelID, displayName, current.URL); ok {
		if err := e.reg.SetUserMessage(userID, adopted); err != nil {
			return err
		}
		err := e.msgr.Edit(ctx, channelID, adopted, render)
		if err == nil {
			return nil
		}
		if !errors.Is(err, discord.ErrNotFound) {
			return errors.Wrap(err, "failed to edit adopted message")
		}
	}
	return e.sendNew(ctx, userID, channelID, render)
}

// sendNew posts a fresh status message and overwrites the user's ref. A
// missing destination channel self-heals by dropping the user's channel
// config.
func (e *Engine) sendNew(ctx context.Context, userID, channelID string, render discord.Render) error {
	messageID, err := e.msgr.Send(ctx, channelID, render)
	if err != nil {
		if errors.Is(err, discord.ErrNotFound) {
			zlog.Warn().Str("user", userID).Str("channel", channelID).
				Msg("status: channel gone, removing channel config")
			return e.reg.RemoveUserChannel(userID)
		}
		return errors.Wrap(err, "failed to send status message")
	}
	return e.reg.SetUserMessage(userID, messageID)
}

// discover scans recent channel history for a bot-authored message that
// plausibly belongs to this user, so a restart does not duplicate
// messages. Heuristic matching only, never the primary lookup.
func (e *Engine) discover(ctx context.Context, channelID, displayName, trackURL string) (string, bool) {
	messages, err := e.msgr.RecentMessages(ctx, channelID, e.cfg.HistoryScanLimit)
	if err != nil {
		zlog.Debug().Err(err).Str("channel", channelID).Msg("status: history scan failed")
		return "", false
	}
	botID := e.msgr.BotUserID()
	for _, m := range messages {
		if m.AuthorID != botID {
			continue
		}
		if trackURL != "" && m.EmbedURL == trackURL {
			return m.ID, true
		}
		if displayName != "" &&
			(strings.Contains(m.EmbedAuthor, displayName) || strings.Contains(m.Content, displayName)) {
			return m.ID, true
		}
	}
	return "", false
}

// DiscoverAll adopts pre-existing status messages for every linked user
// without a message ref. Runs once before the first scheduled cycle.
func (e *Engine) DiscoverAll(ctx context.Context) {
	for _, userID := range e.links.LinkedUserIDs() {
		if _, ok := e.reg.UserMessage(userID); ok {
			continue
		}
		channelID, ok := e.destinationChannel(userID)
		if !ok {
			continue
		}
		displayName, err := e.msgr.DisplayName(ctx, userID)
		if err != nil {
			zlog.Debug().Err(err).Str("user", userID).Msg("status: discovery skipped")
			continue
		}
		var trackURL string
		if snap, ok := e.playback.Snapshot(userID); ok && snap.Track != nil {
			trackURL = snap.Track.URL
		}
		if adopted, ok := e.discover(ctx, channelID, displayName, trackURL); ok {
			if err := e.reg.SetUserMessage(userID, adopted); err != nil {
				zlog.Error().Err(err).Str("user", userID).Msg("status: failed to adopt message")
				continue
			}
			zlog.Info().Str("user", userID).Str("message", adopted).
				Msg("status: adopted existing message")
		}
	}
}

// destinationChannel resolves where the user's status goes: their own
// configured channel, falling back to the shared channel.
func (e *Engine) destinationChannel(userID string) (string, bool) {
	if channelID, ok := e.reg.UserChannel(userID); ok {
		return channelID, true
	}
	return e.reg.SharedChannelID()
}
