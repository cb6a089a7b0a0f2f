package spotify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

func TestNew_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid",
			cfg:     Config{ClientID: "id", ClientSecret: "secret", RedirectURL: "http://127.0.0.1:8888/callback"},
			wantErr: false,
		},
		{
			name:    "missing client id",
			cfg:     Config{ClientSecret: "secret"},
			wantErr: true,
		},
		{
			name:    "missing client secret",
			cfg:     Config{ClientID: "id"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthURL_ContainsState(t *testing.T) {
	svc, err := New(Config{ClientID: "id", ClientSecret: "secret", RedirectURL: "http://127.0.0.1:8888/callback"})
	require.NoError(t, err)

	url := svc.AuthURL("opaque-state-token")
	assert.Contains(t, url, "state=opaque-state-token")
	assert.Contains(t, url, "client_id=id")
}

func fullTrack() *spotify.FullTrack {
	ft := &spotify.FullTrack{}
	ft.ID = "4uLU6hMCjMI75M1A2tKUQC"
	ft.Name = "Song A"
	ft.Artists = []spotify.SimpleArtist{
		{ID: "artist-x", Name: "Artist X"},
		{ID: "artist-y", Name: "Artist Y"},
	}
	ft.Duration = 200000
	ft.Album.Name = "Album A"
	ft.Album.Images = []spotify.Image{{URL: "https://i.scdn.co/image/a"}}
	return ft
}

func TestConvertTrack(t *testing.T) {
	got := convertTrack(fullTrack())

	assert.Equal(t, "Song A", got.Name)
	assert.Equal(t, []string{"Artist X", "Artist Y"}, got.Artists)
	assert.Equal(t, "artist-x", got.ArtistID)
	assert.Equal(t, "Album A", got.Album)
	assert.Equal(t, "https://i.scdn.co/image/a", got.AlbumArtURL)
	assert.Equal(t, "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", got.URL)
	assert.Equal(t, 200*time.Second, got.Duration)
	assert.Equal(t, "Song A|Artist X, Artist Y", got.Fingerprint())
}

func TestConvertPlayback(t *testing.T) {
	cp := &spotify.CurrentlyPlaying{
		Playing:  true,
		Progress: 10000,
		Item:     fullTrack(),
	}

	got := convertPlayback(cp)
	assert.True(t, got.Playing)
	assert.Equal(t, 10*time.Second, got.Progress)
	assert.Equal(t, "Song A", got.Name)
}
