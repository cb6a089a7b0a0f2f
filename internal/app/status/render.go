package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/LeafDevs/qbot/internal/domain/track"
	"github.com/LeafDevs/qbot/internal/infra/discord"
)

// spotifyGreen is the accent color for now-playing embeds.
const spotifyGreen = 0x1DB954

// render builds the outbound status message for one track. The hype
// prefix is only eligible on a fingerprint change.
func (e *Engine) render(userID, displayName string, t *track.Track, changed bool) discord.Render {
	r := discord.Render{
		Title:         t.Name,
		URL:           t.URL,
		Description:   fmt.Sprintf("by **%s** on *%s*", t.ArtistNames(), t.Album),
		Color:         spotifyGreen,
		ThumbnailURL:  t.AlbumArtURL,
		AuthorName:    displayName + " is listening to Spotify",
		AuthorIconURL: t.ArtistImageURL,
		FooterText:    fmt.Sprintf("%s / %s", formatDuration(t.Progress), formatDuration(t.Duration)),
	}
	if !t.Playing {
		r.AuthorName = displayName + " paused Spotify"
	}
	if changed && e.hypeFires(t) {
		r.Content = e.cfg.HypePrefix + fmt.Sprintf("<@%s> is locked in!", userID)
	}
	return r
}

// hypeFires rolls the attention-ping chance when the track's artists
// match one of the configured hype artists.
func (e *Engine) hypeFires(t *track.Track) bool {
	if e.cfg.HypeChance <= 0 || len(e.cfg.HypeArtists) == 0 {
		return false
	}
	joined := strings.ToLower(t.ArtistNames())
	matched := false
	for _, artist := range e.cfg.HypeArtists {
		if artist != "" && strings.Contains(joined, strings.ToLower(artist)) {
			matched = true
			break
		}
	}
	return matched && e.chance() < e.cfg.HypeChance
}

func formatDuration(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
