package bot

import (
	"github.com/bwmarrin/discordgo"
	zlog "github.com/rs/zerolog/log"
)

// interactionUser resolves the invoking user for both guild and DM
// interactions.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// deferEphemeral acknowledges the interaction with a deferred, ephemeral
// response so handlers can take their time.
func deferEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		zlog.Error().Err(err).Msg("bot: failed to defer response")
		return false
	}
	return true
}

// editReply replaces the deferred response with plain text.
func editReply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		zlog.Error().Err(err).Msg("bot: failed to edit response")
	}
}

// editEmbed replaces the deferred response with an embed.
func editEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	embeds := []*discordgo.MessageEmbed{embed}
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &embeds,
	}); err != nil {
		zlog.Error().Err(err).Msg("bot: failed to edit response")
	}
}
