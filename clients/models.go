package clients

import "guardbackend/models"

// DiscordGuild represents the guild information the backend needs
type DiscordGuild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DiscordRole represents a guild role returned by the Discord API
type DiscordRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PunishmentRequest describes one enforcement call against a single guild member.
// DurationMinutes of 0 means permanent (or not applicable for the action).
type PunishmentRequest struct {
	GuildID         string
	UserID          string
	Action          models.PunishmentAction
	DurationMinutes int
	RoleID          string
	Reason          string
}
