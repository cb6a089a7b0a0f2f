// Package spotify provides a per-user client for the Spotify Web API.
package spotify

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/LeafDevs/qbot/internal/domain/track"
)

// TimeRange selects the window for top-tracks queries.
type TimeRange string

const (
	RangeShort  TimeRange = "short_term"
	RangeMedium TimeRange = "medium_term"
	RangeLong   TimeRange = "long_term"
)

// Service wraps the Spotify Web API for per-user access. Unlike a
// single-account client it holds no token itself; every call takes the
// access token of the user it acts for, so token lifecycle stays with
// the token store.
type Service struct {
	auth *spotifyauth.Authenticator
	conf *oauth2.Config
}

// Config represents Spotify application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// New creates a new Spotify service.
func New(cfg Config) (*Service, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(cfg.RedirectURL),
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserReadCurrentlyPlaying,
			spotifyauth.ScopeUserReadPlaybackState,
			spotifyauth.ScopeUserTopRead,
		),
	)

	// Separate oauth2 config for the explicit refresh exchange; the
	// authenticator's auto-refreshing client would hide refresh failures
	// from the token store.
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}

	return &Service{auth: auth, conf: conf}, nil
}

// AuthURL builds the authorization URL for the given opaque state token.
func (s *Service) AuthURL(state string) string {
	return s.auth.AuthURL(state)
}

// Exchange trades an authorization code for an initial token pair.
func (s *Service) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := s.auth.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(classifyRefresh(err), "code exchange failed")
	}
	return tok, nil
}

// Refresh performs a refresh-token exchange against the authorization
// server. Spotify may omit a rotated refresh token from the response;
// callers keep the previous one in that case.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := s.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, errors.Wrap(classifyRefresh(err), "refresh exchange failed")
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}

// client builds a Web API client bound to one access token. The token
// source is static on purpose: reactive refresh is the poller's decision,
// not the HTTP layer's.
func (s *Service) client(ctx context.Context, accessToken string) *spotify.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return spotify.New(oauth2.NewClient(ctx, src))
}

// CurrentlyPlaying fetches the user's current playback. Returns nil with
// no error when nothing is playing or when the active item is not a
// playable track (podcast episodes and the like).
func (s *Service) CurrentlyPlaying(ctx context.Context, accessToken string) (*track.Track, error) {
	cp, err := s.client(ctx, accessToken).PlayerCurrentlyPlaying(ctx)
	if err != nil {
		return nil, errors.Wrap(classify(err), "failed to get current playback")
	}
	// A 204 leaves the result zero-valued; an episode has no artists.
	if cp == nil || cp.Item == nil || len(cp.Item.Artists) == 0 {
		return nil, nil
	}
	return convertPlayback(cp), nil
}

// ArtistImageURL fetches the primary image URL for an artist. Best effort
// only; callers swallow failures.
func (s *Service) ArtistImageURL(ctx context.Context, accessToken, artistID string) (string, error) {
	artist, err := s.client(ctx, accessToken).GetArtist(ctx, spotify.ID(artistID))
	if err != nil {
		return "", errors.Wrap(classify(err), "failed to get artist")
	}
	if len(artist.Images) == 0 {
		return "", nil
	}
	return artist.Images[0].URL, nil
}

// TopTracks fetches the user's most played tracks for a time range.
func (s *Service) TopTracks(ctx context.Context, accessToken string, timeRange TimeRange, limit int) ([]track.Track, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	page, err := s.client(ctx, accessToken).CurrentUsersTopTracks(ctx,
		spotify.Timerange(spotify.Range(timeRange)),
		spotify.Limit(limit),
	)
	if err != nil {
		return nil, errors.Wrap(classify(err), "failed to get top tracks")
	}

	tracks := make([]track.Track, 0, len(page.Tracks))
	for i := range page.Tracks {
		tracks = append(tracks, *convertTrack(&page.Tracks[i]))
	}
	return tracks, nil
}

// convertPlayback converts a currently-playing response to a domain Track.
func convertPlayback(cp *spotify.CurrentlyPlaying) *track.Track {
	t := convertTrack(cp.Item)
	t.Progress = time.Duration(cp.Progress) * time.Millisecond
	t.Playing = cp.Playing
	return t
}

// convertTrack converts a Spotify FullTrack to a domain Track.
func convertTrack(ft *spotify.FullTrack) *track.Track {
	artists := make([]string, len(ft.Artists))
	for i, a := range ft.Artists {
		artists[i] = a.Name
	}

	var artistID string
	if len(ft.Artists) > 0 {
		artistID = string(ft.Artists[0].ID)
	}

	var albumArt string
	if len(ft.Album.Images) > 0 {
		albumArt = ft.Album.Images[0].URL
	}

	return &track.Track{
		Name:        ft.Name,
		Artists:     artists,
		ArtistID:    artistID,
		Album:       ft.Album.Name,
		AlbumArtURL: albumArt,
		URL:         trackURL(string(ft.ID)),
		Duration:    time.Duration(ft.Duration) * time.Millisecond,
	}
}

// trackURL returns the Spotify URL for a track.
func trackURL(trackID string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", trackID)
}
