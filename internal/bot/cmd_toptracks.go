package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	zlog "github.com/rs/zerolog/log"

	"github.com/LeafDevs/qbot/internal/infra/spotify"
)

const defaultTopTracksLimit = 10

// TopTracksCommand lists the user's most played tracks over a chosen
// time range.
func TopTracksCommand() (*discordgo.ApplicationCommand, Handler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "toptracks",
		Description: "Show your most played tracks",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "range",
				Description: "Time range to rank over",
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Last 4 weeks", Value: "short"},
					{Name: "Last 6 months", Value: "medium"},
					{Name: "All time", Value: "long"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "count",
				Description: "How many tracks to show (1-25)",
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
		if !svc.Accounts.IsLinked(user.ID) {
			editReply(s, i, "You don't have a linked Spotify account. Use /link first.")
			return
		}

		timeRange := spotify.RangeMedium
		rangeLabel := "last 6 months"
		limit := defaultTopTracksLimit
		for _, opt := range i.ApplicationCommandData().Options {
			switch opt.Name {
			case "range":
				timeRange, rangeLabel = parseTimeRange(opt.StringValue())
			case "count":
				limit = clampLimit(int(opt.IntValue()))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tracks, err := svc.Poller.TopTracks(ctx, user.ID, timeRange, limit)
		if err != nil {
			zlog.Error().Err(err).Str("user", user.ID).Msg("bot: toptracks failed")
			editReply(s, i, "Could not fetch your top tracks. Please try again later.")
			return
		}
		if len(tracks) == 0 {
			editReply(s, i, "No listening history for that range yet.")
			return
		}

		var lines []string
		for n, t := range tracks {
			lines = append(lines, fmt.Sprintf("**%d.** [%s](%s) by %s", n+1, t.Name, t.URL, t.ArtistNames()))
		}
		editEmbed(s, i, &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("Top tracks (%s)", rangeLabel),
			Description: strings.Join(lines, "\n"),
			Color:       spotifyGreen,
		})
	}

	return cmd, handler
}

// parseTimeRange maps the option value to the API's time range.
func parseTimeRange(value string) (spotify.TimeRange, string) {
	switch value {
	case "short":
		return spotify.RangeShort, "last 4 weeks"
	case "long":
		return spotify.RangeLong, "all time"
	default:
		return spotify.RangeMedium, "last 6 months"
	}
}

func clampLimit(n int) int {
	if n < 1 {
		return defaultTopTracksLimit
	}
	if n > 25 {
		return 25
	}
	return n
}
