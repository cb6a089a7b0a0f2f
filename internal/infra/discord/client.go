// Package discord adapts the Discord REST API for status delivery.
package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
)

// ErrNotFound marks a channel or message that no longer exists. Callers
// prune their persisted reference and recover on the next cycle.
var ErrNotFound = errors.New("discord: channel or message not found")

// Render is the rendered status content for one outbound message.
type Render struct {
	Content       string
	Title         string
	URL           string
	Description   string
	Color         int
	ThumbnailURL  string
	AuthorName    string
	AuthorIconURL string
	FooterText    string
}

// Message is the subset of a Discord message the reconciliation loop
// needs for discovery and adoption.
type Message struct {
	ID          string
	ChannelID   string
	AuthorID    string
	Content     string
	EmbedURL    string
	EmbedAuthor string
}

// Client is a Discord messaging client backed by a gateway session.
type Client struct {
	session *discordgo.Session
}

// NewClient wraps an open discordgo session.
func NewClient(session *discordgo.Session) *Client {
	return &Client{session: session}
}

// BotUserID returns the bot's own user ID.
func (c *Client) BotUserID() string {
	if c.session.State == nil || c.session.State.User == nil {
		return ""
	}
	return c.session.State.User.ID
}

// ChannelExists confirms the channel still resolves.
func (c *Client) ChannelExists(ctx context.Context, channelID string) error {
	_, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return classify(err)
	}
	return nil
}

// Message fetches a single message by ID within a channel.
func (c *Client) Message(ctx context.Context, channelID, messageID string) (*Message, error) {
	msg, err := c.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	converted := convertMessage(msg)
	return &converted, nil
}

// RecentMessages fetches up to limit recent messages for discovery scans.
func (c *Client) RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	msgs, err := c.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	result := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		result = append(result, convertMessage(m))
	}
	return result, nil
}

// Send posts a new status message and returns its ID.
func (c *Client) Send(ctx context.Context, channelID string, r Render) (string, error) {
	msg, err := c.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: r.Content,
		Embeds:  []*discordgo.MessageEmbed{buildEmbed(r)},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", classify(err)
	}
	return msg.ID, nil
}

// Edit replaces the content/embed of an existing status message.
func (c *Client) Edit(ctx context.Context, channelID, messageID string, r Render) error {
	embeds := []*discordgo.MessageEmbed{buildEmbed(r)}
	_, err := c.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel: channelID,
		ID:      messageID,
		Content: &r.Content,
		Embeds:  &embeds,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return classify(err)
	}
	return nil
}

// DisplayName resolves a user's display name for embed rendering.
func (c *Client) DisplayName(ctx context.Context, userID string) (string, error) {
	user, err := c.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", classify(err)
	}
	if user.GlobalName != "" {
		return user.GlobalName, nil
	}
	return user.Username, nil
}

// buildEmbed converts a render into a Discord embed.
func buildEmbed(r Render) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       r.Title,
		URL:         r.URL,
		Description: r.Description,
		Color:       r.Color,
	}
	if r.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: r.ThumbnailURL}
	}
	if r.AuthorName != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{Name: r.AuthorName, IconURL: r.AuthorIconURL}
	}
	if r.FooterText != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: r.FooterText}
	}
	return embed
}

// convertMessage reduces a Discord message to discovery fields.
func convertMessage(m *discordgo.Message) Message {
	msg := Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}
	if len(m.Embeds) > 0 {
		msg.EmbedURL = m.Embeds[0].URL
		if m.Embeds[0].Author != nil {
			msg.EmbedAuthor = m.Embeds[0].Author.Name
		}
	}
	return msg
}

// classify tags missing-resource REST errors so downstream logic never
// inspects Discord error codes.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMessage:
			return errors.Mark(err, ErrNotFound)
		}
	}
	return err
}
