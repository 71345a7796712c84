package handlers

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"guardbackend/middleware"
	"guardbackend/models"
	"guardbackend/usecases/protection"
)

// DiscordEventsHandler receives gateway events and fans each one out to the
// protection engine on its own goroutine so the gateway reader is never
// blocked by detector or enforcement latency
type DiscordEventsHandler struct {
	session *discordgo.Session
	engine  *protection.ProtectionEngine
	alerts  *middleware.ErrorAlertMiddleware
}

func NewDiscordEventsHandler(
	session *discordgo.Session,
	engine *protection.ProtectionEngine,
	alerts *middleware.ErrorAlertMiddleware,
) *DiscordEventsHandler {
	handler := &DiscordEventsHandler{
		session: session,
		engine:  engine,
		alerts:  alerts,
	}

	// Register event handlers
	session.AddHandler(handler.handleMessageCreate)
	session.AddHandler(handler.handleGuildMemberAdd)
	session.AddHandler(handler.handleGuildCreate)
	session.AddHandler(handler.handleGuildDelete)

	// Set intents to receive guild, member and message events
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages

	return handler
}

// StartBot opens the Discord connection and starts listening for events
func (h *DiscordEventsHandler) StartBot() error {
	if err := h.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	log.Printf("🤖 Discord bot is now running and listening for events")
	return nil
}

// StopBot gracefully closes the Discord connection
func (h *DiscordEventsHandler) StopBot() {
	if err := h.session.Close(); err != nil {
		log.Printf("⚠️ Failed to close Discord session: %v", err)
	}
}

func (h *DiscordEventsHandler) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.GuildID == "" {
		return // DMs and partial payloads are not protected territory
	}

	event := h.mapToMessageEvent(s, m)
	go h.alerts.WrapEventTask("DiscordMessageCreate", func() error {
		h.engine.OnMessage(event)
		return nil
	})()
}

func (h *DiscordEventsHandler) handleGuildMemberAdd(s *discordgo.Session, g *discordgo.GuildMemberAdd) {
	if g.User == nil || g.GuildID == "" {
		return
	}

	event, err := h.mapToJoinEvent(g)
	if err != nil {
		log.Printf("❌ Failed to map member join event in guild %s: %v", g.GuildID, err)
		return
	}

	go h.alerts.WrapEventTask("DiscordGuildMemberAdd", func() error {
		h.engine.OnUserJoin(event)
		return nil
	})()
}

func (h *DiscordEventsHandler) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	guildID := models.GuildID(g.ID)
	go h.alerts.WrapEventTask("DiscordGuildCreate", func() error {
		return h.engine.HandleGuildAdded(context.Background(), guildID)
	})()
}

func (h *DiscordEventsHandler) handleGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	guildID := models.GuildID(g.ID)
	go h.alerts.WrapEventTask("DiscordGuildDelete", func() error {
		h.engine.HandleGuildRemoved(guildID)
		return nil
	})()
}

// mapToMessageEvent maps the Discord SDK message to our model
func (h *DiscordEventsHandler) mapToMessageEvent(
	s *discordgo.Session,
	m *discordgo.MessageCreate,
) models.GuildMessageEvent {
	return models.GuildMessageEvent{
		GuildID:   models.GuildID(m.GuildID),
		ChannelID: models.ChannelID(m.ChannelID),
		User: models.GuildUser{
			ID:       models.UserID(m.Author.ID),
			Username: m.Author.Username,
		},
		IsBot:   m.Author.Bot,
		IsAdmin: memberIsAdmin(s, m),
	}
}

// mapToJoinEvent maps the Discord SDK join to our model. The account creation
// time is derived from the user's snowflake ID.
func (h *DiscordEventsHandler) mapToJoinEvent(g *discordgo.GuildMemberAdd) (models.GuildMemberJoinEvent, error) {
	createdAt, err := discordgo.SnowflakeTimestamp(g.User.ID)
	if err != nil {
		return models.GuildMemberJoinEvent{}, fmt.Errorf("failed to parse user snowflake: %w", err)
	}

	return models.GuildMemberJoinEvent{
		GuildID: models.GuildID(g.GuildID),
		User: models.GuildUser{
			ID:               models.UserID(g.User.ID),
			Username:         g.User.Username,
			AccountCreatedAt: createdAt,
		},
	}, nil
}

// memberIsAdmin checks the author's effective channel permissions from the
// session state cache; a cache miss counts as not-admin rather than blocking
// the event path with a REST call
func memberIsAdmin(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	permissions, err := s.State.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		return false
	}
	return permissions&discordgo.PermissionAdministrator != 0
}
