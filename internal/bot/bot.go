// Package bot exposes the slash-command surface of the status mirror.
package bot

import (
	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/LeafDevs/qbot/internal/app/accounts"
	"github.com/LeafDevs/qbot/internal/app/poller"
	"github.com/LeafDevs/qbot/internal/app/registry"
)

// Services bundles the application services the commands call into.
type Services struct {
	Accounts *accounts.Service
	Registry *registry.Registry
	Poller   *poller.Poller
}

// Handler handles one slash-command interaction.
type Handler func(s *discordgo.Session, i *discordgo.InteractionCreate, svc *Services)

// Registry maps command names to their definitions and handlers.
type Registry struct {
	commands map[string]*discordgo.ApplicationCommand
	handlers map[string]Handler
}

// NewRegistry builds the registry with every command installed.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*discordgo.ApplicationCommand),
		handlers: make(map[string]Handler),
	}
	r.register(LinkCommand())
	r.register(UnlinkCommand())
	r.register(StatusCommand())
	r.register(SetChannelCommand())
	r.register(RemoveChannelCommand())
	r.register(TopTracksCommand())
	return r
}

func (r *Registry) register(cmd *discordgo.ApplicationCommand, h Handler) {
	r.commands[cmd.Name] = cmd
	r.handlers[cmd.Name] = h
}

// Handle dispatches an interaction to its registered handler.
func (r *Registry) Handle(s *discordgo.Session, i *discordgo.InteractionCreate, svc *Services) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	name := i.ApplicationCommandData().Name
	h, ok := r.handlers[name]
	if !ok {
		zlog.Warn().Str("command", name).Msg("bot: unknown command")
		return
	}
	h(s, i, svc)
}

// Bot owns the Discord session wiring for the command surface.
type Bot struct {
	session  *discordgo.Session
	appID    string
	registry *Registry
	services *Services
}

// New attaches the command registry to an open session.
func New(session *discordgo.Session, appID string, svc *Services) *Bot {
	b := &Bot{
		session:  session,
		appID:    appID,
		registry: NewRegistry(),
		services: svc,
	}
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.registry.Handle(s, i, b.services)
	})
	return b
}

// RegisterCommands replaces the application's global commands with the
// registry's set.
func (b *Bot) RegisterCommands() error {
	desired := make([]*discordgo.ApplicationCommand, 0, len(b.registry.commands))
	for _, cmd := range b.registry.commands {
		desired = append(desired, cmd)
	}
	if _, err := b.session.ApplicationCommandBulkOverwrite(b.appID, "", desired); err != nil {
		return errors.Wrap(err, "failed to register commands")
	}
	zlog.Info().Int("count", len(desired)).Msg("bot: commands registered")
	return nil
}
