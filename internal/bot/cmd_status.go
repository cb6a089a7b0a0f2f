package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	zlog "github.com/rs/zerolog/log"

	"github.com/LeafDevs/qbot/internal/domain/track"
)

const spotifyGreen = 0x1DB954

// StatusCommand shows the invoking user their current playback.
func StatusCommand() (*discordgo.ApplicationCommand, Handler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "status",
		Description: "Show what you are currently playing",
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
			editReply(s, i, "You don't have a linked Spotify account. Use /link first.")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		current, err := svc.Poller.Poll(ctx, user.ID)
		if err != nil {
			zlog.Error().Err(err).Str("user", user.ID).Msg("bot: status poll failed")
			editReply(s, i, "Could not reach Spotify right now. Please try again later.")
			return
		}
		if current == nil {
			editReply(s, i, "Nothing is playing right now.")
			return
		}
		editEmbed(s, i, nowPlayingEmbed(current))
	}

	return cmd, handler
}

// nowPlayingEmbed renders a single track for an ephemeral reply.
func nowPlayingEmbed(t *track.Track) *discordgo.MessageEmbed {
	state := "Now playing"
	if !t.Playing {
		state = "Paused"
	}
	embed := &discordgo.MessageEmbed{
		Title:       t.Name,
		URL:         t.URL,
		Description: fmt.Sprintf("by **%s** on *%s*", t.ArtistNames(), t.Album),
		Color:       spotifyGreen,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%s · %s / %s", state, formatTime(t.Progress), formatTime(t.Duration)),
		},
	}
	if t.AlbumArtURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.AlbumArtURL}
	}
	return embed
}

func formatTime(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
