package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	zlog "github.com/rs/zerolog/log"
)

// LinkCommand starts the account-linking flow by handing the user their
// authorization URL.
func LinkCommand() (*discordgo.ApplicationCommand, Handler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "link",
		Description: "Link your Spotify account",
	}

	handler := func(s *discordgo.Session, i *discordgo.InteractionCreate, svc *Services) {
		if !deferEphemeral(s, i) {
			return
		}
		user := interactionUser(i)
		if user == nil {
			editReply(s, i, "Could not identify you, sorry.")
			return
		}
		if svc.Accounts.IsLinked(user.ID) {
			editReply(s, i, "Your Spotify account is already linked. Use /unlink first to relink.")
			return
		}
		authURL, err := svc.Accounts.BeginLink(user.ID)
		if err != nil {
			zlog.Error().Err(err).Str("user", user.ID).Msg("bot: link failed")
			editReply(s, i, "Something went wrong starting the link. Please try again later.")
			return
		}
		editReply(s, i, fmt.Sprintf(
			"Authorize qbot with Spotify here (link expires soon):\n%s", authURL))
	}

	return cmd, handler
}

// UnlinkCommand removes the user's account and cascades their playback
// state and status message ref. Their channel config goes too, but
// channels configured by other users stay.
func UnlinkCommand() (*discordgo.ApplicationCommand, Handler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "unlink",
		Description: "Unlink your Spotify account",
	}

	handler := func(s *discordgo.Session, i *discordgo.InteractionCreate, svc *Services) {
		if !deferEphemeral(s, i) {
			return
		}
		user := interactionUser(i)
		if user == nil {
			editReply(s, i, "Could not identify you, sorry.")
			return
		}
		if !svc.Accounts.IsLinked(user.ID) {
			editReply(s, i, "You don't have a linked Spotify account.")
			return
		}
		if err := svc.Accounts.Unlink(user.ID); err != nil {
			zlog.Error().Err(err).Str("user", user.ID).Msg("bot: unlink failed")
			editReply(s, i, "Something went wrong. Please try again later.")
			return
		}
		if err := svc.Poller.ClearSnapshot(user.ID); err != nil {
			zlog.Error().Err(err).Str("user", user.ID).Msg("bot: snapshot cleanup failed")
		}
		if err := svc.Registry.RemoveUser(user.ID); err != nil {
			zlog.Error().Err(err).Str("user", user.ID).Msg("bot: registry cleanup failed")
		}
		editReply(s, i, "Your Spotify account has been unlinked.")
	}

	return cmd, handler
}
