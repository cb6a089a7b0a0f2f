package status

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/LeafDevs/qbot/internal/infra/discord"
)

// ValidateStartup prunes persisted channel and message state that the
// live backend no longer resolves. Runs once, synchronously, before the
// first reconciliation cycle.
func (e *Engine) ValidateStartup(ctx context.Context) error {
	for _, entry := range e.reg.AllChannels() {
		err := e.msgr.ChannelExists(ctx, entry.ChannelID)
		if err == nil {
			continue
		}
		if !errors.Is(err, discord.ErrNotFound) {
			// Transient; keep the entry and let the loop retry.
			zlog.Warn().Err(err).Str("channel", entry.ChannelID).
				Msg("status: channel check failed, keeping config")
			continue
		}
		zlog.Info().Str("user", entry.UserID).Str("channel", entry.ChannelID).
			Msg("status: pruning dead channel config")
		if err := e.reg.RemoveUserChannel(entry.UserID); err != nil {
			return errors.Wrap(err, "failed to prune channel config")
		}
	}

	for userID, messageID := range e.reg.MessageRefs() {
		channelID, ok := e.reg.UserChannel(userID)
		if !ok {
			// Orphan ref with no channel config behind it.
			zlog.Info().Str("user", userID).Msg("status: clearing orphan message ref")
			if err := e.reg.ClearUserMessage(userID); err != nil {
				return errors.Wrap(err, "failed to clear orphan message ref")
			}
			continue
		}
		_, err := e.msgr.Message(ctx, channelID, messageID)
		if err == nil {
			continue
		}
		if !errors.Is(err, discord.ErrNotFound) {
			zlog.Warn().Err(err).Str("user", userID).
				Msg("status: message check failed, keeping ref")
			continue
		}
		zlog.Info().Str("user", userID).Str("message", messageID).
			Msg("status: clearing dead message ref")
		if err := e.reg.ClearUserMessage(userID); err != nil {
			return errors.Wrap(err, "failed to clear message ref")
		}
	}
	return nil
}
