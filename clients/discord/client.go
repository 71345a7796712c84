package discord

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"guardbackend/clients"
	"guardbackend/models"
)

const (
	muteRoleName = "Muted"

	// Discord caps member timeouts at 28 days; a duration of 0 is treated as
	// permanent and pinned to that cap.
	maxTimeoutDuration = 28 * 24 * time.Hour
)

// applyFunc executes one punishment kind against a single guild member
type applyFunc func(ctx context.Context, req clients.PunishmentRequest) error

// DiscordClient implements the clients.DiscordClient interface on top of a
// shared discordgo session
type DiscordClient struct {
	session  *discordgo.Session
	appliers map[models.PunishmentAction]applyFunc
}

// NewDiscordClient creates a new Discord enforcement client
func NewDiscordClient(session *discordgo.Session) clients.DiscordClient {
	c := &DiscordClient{session: session}
	// One applier per punishment kind, so call sites never switch on the action
	c.appliers = map[models.PunishmentAction]applyFunc{
		models.ActionBan:         c.applyBan,
		models.ActionKick:        c.applyKick,
		models.ActionMute:        c.applyMuteRole,
		models.ActionChatMute:    c.applyMuteRole,
		models.ActionVoiceMute:   c.applyVoiceMute,
		models.ActionAddRole:     c.applyAddRole,
		models.ActionTimeout:     c.applyTimeout,
		models.ActionRemoveRoles: c.applyRemoveRoles,
	}
	return c
}

// ApplyPunishment executes the configured punishment against one guild member
func (c *DiscordClient) ApplyPunishment(ctx context.Context, req clients.PunishmentRequest) error {
	apply, ok := c.appliers[req.Action]
	if !ok {
		return fmt.Errorf("unsupported punishment action: %s", req.Action)
	}
	if err := apply(ctx, req); err != nil {
		return fmt.Errorf("failed to apply %s to user %s in guild %s: %w",
			req.Action, req.UserID, req.GuildID, err)
	}
	return nil
}

func (c *DiscordClient) applyBan(ctx context.Context, req clients.PunishmentRequest) error {
	return c.session.GuildBanCreateWithReason(req.GuildID, req.UserID, req.Reason, 0, discordgo.WithContext(ctx))
}

func (c *DiscordClient) applyKick(ctx context.Context, req clients.PunishmentRequest) error {
	return c.session.GuildMemberDeleteWithReason(req.GuildID, req.UserID, req.Reason, discordgo.WithContext(ctx))
}

func (c *DiscordClient) applyTimeout(ctx context.Context, req clients.PunishmentRequest) error {
	duration := time.Duration(req.DurationMinutes) * time.Minute
	if duration <= 0 || duration > maxTimeoutDuration {
		duration = maxTimeoutDuration
	}
	until := time.Now().Add(duration)
	return c.session.GuildMemberTimeout(req.GuildID, req.UserID, &until, discordgo.WithContext(ctx))
}

func (c *DiscordClient) applyMuteRole(ctx context.Context, req clients.PunishmentRequest) error {
	if req.RoleID == "" {
		return fmt.Errorf("mute action requires a role ID")
	}
	if err := c.session.GuildMemberRoleAdd(req.GuildID, req.UserID, req.RoleID, discordgo.WithContext(ctx)); err != nil {
		return err
	}
	c.scheduleRevert(req, func() error {
		return c.session.GuildMemberRoleRemove(req.GuildID, req.UserID, req.RoleID)
	})
	return nil
}

func (c *DiscordClient) applyVoiceMute(ctx context.Context, req clients.PunishmentRequest) error {
	if err := c.session.GuildMemberMute(req.GuildID, req.UserID, true, discordgo.WithContext(ctx)); err != nil {
		return err
	}
	c.scheduleRevert(req, func() error {
		return c.session.GuildMemberMute(req.GuildID, req.UserID, false)
	})
	return nil
}

func (c *DiscordClient) applyAddRole(ctx context.Context, req clients.PunishmentRequest) error {
	if req.RoleID == "" {
		return fmt.Errorf("add_role action requires a role ID")
	}
	if err := c.session.GuildMemberRoleAdd(req.GuildID, req.UserID, req.RoleID, discordgo.WithContext(ctx)); err != nil {
		return err
	}
	c.scheduleRevert(req, func() error {
		return c.session.GuildMemberRoleRemove(req.GuildID, req.UserID, req.RoleID)
	})
	return nil
}

func (c *DiscordClient) applyRemoveRoles(ctx context.Context, req clients.PunishmentRequest) error {
	member, err := c.session.GuildMember(req.GuildID, req.UserID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to fetch member: %w", err)
	}
	for _, roleID := range member.Roles {
		if err := c.session.GuildMemberRoleRemove(req.GuildID, req.UserID, roleID, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("failed to remove role %s: %w", roleID, err)
		}
	}
	return nil
}

// scheduleRevert undoes a temporary punishment after its configured duration.
// A duration of 0 means permanent, so nothing is scheduled.
func (c *DiscordClient) scheduleRevert(req clients.PunishmentRequest, revert func() error) {
	if req.DurationMinutes <= 0 {
		return
	}
	time.AfterFunc(time.Duration(req.DurationMinutes)*time.Minute, func() {
		if err := revert(); err != nil {
			log.Printf("⚠️ Failed to revert %s for user %s in guild %s: %v",
				req.Action, req.UserID, req.GuildID, err)
		}
	})
}

// GetOrCreateMuteRole resolves the guild's mute role, creating it with zero
// permissions and denying send/react on every text channel when missing
func (c *DiscordClient) GetOrCreateMuteRole(ctx context.Context, guildID string) (*clients.DiscordRole, error) {
	roles, err := c.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guild roles: %w", err)
	}
	for _, role := range roles {
		if role.Name == muteRoleName {
			return &clients.DiscordRole{ID: role.ID, Name: role.Name}, nil
		}
	}

	var noPermissions int64
	role, err := c.session.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:        muteRoleName,
		Permissions: &noPermissions,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create mute role: %w", err)
	}

	channels, err := c.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guild channels: %w", err)
	}
	deny := int64(discordgo.PermissionSendMessages | discordgo.PermissionAddReactions)
	for _, channel := range channels {
		if channel.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		err := c.session.ChannelPermissionSet(
			channel.ID, role.ID, discordgo.PermissionOverwriteTypeRole, 0, deny, discordgo.WithContext(ctx))
		if err != nil {
			// A single uneditable channel should not fail detector startup
			log.Printf("⚠️ Failed to set mute overwrite on channel %s in guild %s: %v", channel.ID, guildID, err)
		}
	}

	log.Printf("✅ Created mute role %s for guild %s", role.ID, guildID)
	return &clients.DiscordRole{ID: role.ID, Name: role.Name}, nil
}

// GetGuildByID fetches basic guild information
func (c *DiscordClient) GetGuildByID(ctx context.Context, guildID string) (*clients.DiscordGuild, error) {
	guild, err := c.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guild: %w", err)
	}
	if guild == nil {
		return nil, fmt.Errorf("guild not found")
	}
	return &clients.DiscordGuild{ID: guild.ID, Name: guild.Name}, nil
}
