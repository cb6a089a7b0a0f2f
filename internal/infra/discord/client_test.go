package discord

import (
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func restError(code int) *discordgo.RESTError {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  &discordgo.APIErrorMessage{Code: code},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{
			name:     "nil error",
			err:      nil,
			notFound: false,
		},
		{
			name:     "unknown channel marks not found",
			err:      restError(discordgo.ErrCodeUnknownChannel),
			notFound: true,
		},
		{
			name:     "unknown message marks not found",
			err:      restError(discordgo.ErrCodeUnknownMessage),
			notFound: true,
		},
		{
			name:     "missing permissions passes through",
			err:      restError(discordgo.ErrCodeMissingPermissions),
			notFound: false,
		},
		{
			name:     "plain error passes through",
			err:      errors.New("connection reset"),
			notFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.notFound, errors.Is(got, ErrNotFound))
		})
	}
}

func TestBuildEmbed(t *testing.T) {
	r := Render{
		Title:         "Song A",
		URL:           "https://open.spotify.com/track/abc",
		Description:   "by Artist X",
		Color:         0x1DB954,
		ThumbnailURL:  "https://i.scdn.co/image/a",
		AuthorName:    "listener",
		AuthorIconURL: "https://cdn.discordapp.com/avatar.png",
		FooterText:    "Album A",
	}

	embed := buildEmbed(r)
	assert.Equal(t, "Song A", embed.Title)
	assert.Equal(t, "https://open.spotify.com/track/abc", embed.URL)
	assert.Equal(t, "https://i.scdn.co/image/a", embed.Thumbnail.URL)
	assert.Equal(t, "listener", embed.Author.Name)
	assert.Equal(t, "Album A", embed.Footer.Text)
}

func TestBuildEmbed_OmitsEmptySections(t *testing.T) {
	embed := buildEmbed(Render{Title: "Song A"})
	assert.Nil(t, embed.Thumbnail)
	assert.Nil(t, embed.Author)
	assert.Nil(t, embed.Footer)
}

func TestConvertMessage(t *testing.T) {
	m := &discordgo.Message{
		ID:        "m-1",
		ChannelID: "c-1",
		Author:    &discordgo.User{ID: "bot-1"},
		Content:   "now playing",
		Embeds: []*discordgo.MessageEmbed{
			{
				URL:    "https://open.spotify.com/track/abc",
				Author: &discordgo.MessageEmbedAuthor{Name: "listener"},
			},
		},
	}

	got := convertMessage(m)
	assert.Equal(t, "m-1", got.ID)
	assert.Equal(t, "bot-1", got.AuthorID)
	assert.Equal(t, "https://open.spotify.com/track/abc", got.EmbedURL)
	assert.Equal(t, "listener", got.EmbedAuthor)
}

func TestConvertMessage_NoEmbeds(t *testing.T) {
	got := convertMessage(&discordgo.Message{ID: "m-2"})
	assert.Empty(t, got.EmbedURL)
	assert.Empty(t, got.EmbedAuthor)
}
