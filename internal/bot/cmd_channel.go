package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	zlog "github.com/rs/zerolog/log"
)

// SetChannelCommand configures the channel the user's status message is
// posted to. Without an explicit option the invoking channel is used.
func SetChannelCommand() (*discordgo.ApplicationCommand, Handler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "setchannel",
		Description: "Set the channel for your now-playing status",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionChannel,
				Name:        "channel",
				Description: "Target channel (defaults to this one)",
				ChannelTypes: []discordgo.ChannelType{
					discordgo.ChannelTypeGuildText,
				},
			},
		},
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

		channelID := i.ChannelID
		for _, opt := range i.ApplicationCommandData().Options {
			if opt.Name == "channel" {
				channelID = opt.ChannelValue(nil).ID
			}
		}
		if channelID == "" {
			editReply(s, i, "Could not determine a target channel.")
			return
		}

		if err := svc.Registry.SetUserChannel(user.ID, channelID); err != nil {
			zlog.Error().Err(err).Str("user", user.ID).Msg("bot: setchannel failed")
			editReply(s, i, "Something went wrong. Please try again later.")
			return
		}
		editReply(s, i, fmt.Sprintf("Your status will be posted in <#%s>.", channelID))
	}

	return cmd, handler
}

// RemoveChannelCommand drops the user's channel config. Their status
// message ref is cleared with it; a fresh message is created after the
// next configuration.
func RemoveChannelCommand() (*discordgo.ApplicationCommand, Handler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "removechannel",
		Description: "Stop posting your now-playing status",
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
		if _, ok := svc.Registry.UserChannel(user.ID); !ok {
			editReply(s, i, "You don't have a status channel configured.")
			return
		}
		if err := svc.Registry.RemoveUserChannel(user.ID); err != nil {
			zlog.Error().Err(err).Str("user", user.ID).Msg("bot: removechannel failed")
			editReply(s, i, "Something went wrong. Please try again later.")
			return
		}
		editReply(s, i, "Your status channel has been removed.")
	}

	return cmd, handler
}
