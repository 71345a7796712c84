package clients

import "context"

// DiscordClient defines the enforcement operations the protection engine
// performs against the Discord API
type DiscordClient interface {
	// ApplyPunishment executes the configured punishment against one guild member
	ApplyPunishment(ctx context.Context, req PunishmentRequest) error
	// GetOrCreateMuteRole resolves the guild's mute role, creating it (and its
	// channel permission overwrites) if it does not exist yet
	GetOrCreateMuteRole(ctx context.Context, guildID string) (*DiscordRole, error)
	// GetGuildByID fetches basic guild information
	GetGuildByID(ctx context.Context, guildID string) (*DiscordGuild, error)
}
