// Package track provides the Track domain entity.
package track

import (
	"strings"
	"time"
)

// Track represents a playing Spotify track as observed by the poller.
// Contains only information retrieved from the Spotify API.
type Track struct {
	Name           string        `json:"name"`                       // Track name
	Artists        []string      `json:"artists"`                    // Artist names, primary first
	ArtistID       string        `json:"artist_id,omitempty"`        // Primary artist Spotify ID
	ArtistImageURL string        `json:"artist_image_url,omitempty"` // Primary artist image URL (best effort)
	Album          string        `json:"album"`                      // Album name
	AlbumArtURL    string        `json:"album_art_url,omitempty"`    // Album art URL
	URL            string        `json:"url"`                        // Spotify track URL
	Duration       time.Duration `json:"duration"`                   // Track duration
	Progress       time.Duration `json:"progress"`                   // Playback progress at observation time
	Playing        bool          `json:"playing"`                    // Whether playback is active
}

// ArtistNames returns the display string for all artists.
func (t *Track) ArtistNames() string {
	return strings.Join(t.Artists, ", ")
}

// Fingerprint returns the change-detection key for the track.
// Same-named tracks by artists with an identical joined display string
// collide; that is an accepted limitation, not a uniqueness guarantee.
func (t *Track) Fingerprint() string {
	return t.Name + "|" + t.ArtistNames()
}

// Snapshot is the per-user playback state, overwritten on every poll.
// Fingerprint survives polls that observe no playback so that change
// detection can compare against the last track actually seen.
type Snapshot struct {
	UserID        string    `json:"user_id"`
	Track         *Track    `json:"track,omitempty"`
	Fingerprint   string    `json:"fingerprint,omitempty"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}
