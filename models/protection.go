package models

import (
	"time"

	"github.com/lib/pq"
)

// GuildID is the Discord snowflake of a protected guild
type GuildID string

// UserID is the Discord snowflake of a guild member
type UserID string

// ChannelID is the Discord snowflake of a guild channel
type ChannelID string

// RoleID is the Discord snowflake of a guild role
type RoleID string

// DetectorKind identifies one of the three protection detectors
type DetectorKind string

const (
	DetectorSpam DetectorKind = "spam"
	DetectorRaid DetectorKind = "raid"
	DetectorAlt  DetectorKind = "alt"
)

// PunishmentAction is the configured punishment applied when a detector triggers
type PunishmentAction string

const (
	ActionBan         PunishmentAction = "ban"
	ActionKick        PunishmentAction = "kick"
	ActionMute        PunishmentAction = "mute"
	ActionChatMute    PunishmentAction = "chat_mute"
	ActionVoiceMute   PunishmentAction = "voice_mute"
	ActionAddRole     PunishmentAction = "add_role"
	ActionTimeout     PunishmentAction = "timeout"
	ActionRemoveRoles PunishmentAction = "remove_roles"
)

// IsValid reports whether the action is one of the supported punishment kinds
func (a PunishmentAction) IsValid() bool {
	switch a {
	case ActionBan, ActionKick, ActionMute, ActionChatMute, ActionVoiceMute,
		ActionAddRole, ActionTimeout, ActionRemoveRoles:
		return true
	}
	return false
}

// NeedsMuteRole reports whether applying the action requires the guild's mute role
func (a PunishmentAction) NeedsMuteRole() bool {
	return a == ActionMute || a == ActionChatMute
}

// GuildUser is the subset of member identity the detectors need
type GuildUser struct {
	ID               UserID    `json:"id"`
	Username         string    `json:"username"`
	AccountCreatedAt time.Time `json:"account_created_at"`
}

// AntiSpamSetting configures the message-flood detector for one guild
type AntiSpamSetting struct {
	GuildID           GuildID          `json:"guild_id"`
	MessageThreshold  int              `json:"message_threshold"`
	Action            PunishmentAction `json:"action"`
	MuteTimeMinutes   int              `json:"mute_time_minutes"`
	RoleID            *RoleID          `json:"role_id,omitempty"`
	IgnoredChannelIDs []ChannelID      `json:"ignored_channel_ids"`
}

// AntiRaidSetting configures the mass-join detector for one guild
type AntiRaidSetting struct {
	GuildID               GuildID          `json:"guild_id"`
	UserThreshold         int              `json:"user_threshold"`
	WindowSeconds         int              `json:"window_seconds"`
	Action                PunishmentAction `json:"action"`
	PunishDurationMinutes int              `json:"punish_duration_minutes"`
	RoleID                *RoleID          `json:"role_id,omitempty"`
}

// AntiAltSetting configures the young-account detector for one guild
type AntiAltSetting struct {
	GuildID               GuildID          `json:"guild_id"`
	MinAccountAgeMinutes  int              `json:"min_account_age_minutes"`
	Action                PunishmentAction `json:"action"`
	ActionDurationMinutes int              `json:"action_duration_minutes"`
	RoleID                *RoleID          `json:"role_id,omitempty"`
}

// PunishQueueItem is one unit of enforcement work produced by a detector.
// Spam and alt triggers carry a single user; a raid trigger carries the whole
// batch of joiners snapshotted at the threshold crossing.
//
// A DurationMinutes of 0 means permanent (or not applicable for the action).
type PunishQueueItem struct {
	ID              string           `json:"id"`
	GuildID         GuildID          `json:"guild_id"`
	Users           []GuildUser      `json:"users"`
	Action          PunishmentAction `json:"action"`
	Detector        DetectorKind     `json:"detector"`
	DurationMinutes int              `json:"duration_minutes"`
	RoleID          *RoleID          `json:"role_id,omitempty"`
	Reason          string           `json:"reason"`
}

// ProtectionTrigger is the notification raised after a detector fired and its
// punishment was processed, or when a detector failed to start.
type ProtectionTrigger struct {
	GuildID       GuildID          `json:"guild_id"`
	Detector      DetectorKind     `json:"detector"`
	Action        PunishmentAction `json:"action"`
	Users         []GuildUser      `json:"users"`
	ConfigFailure bool             `json:"config_failure"`
	Message       string           `json:"message"`
}

// ProtectionSetting is the persisted row backing one detector configuration.
// Zero-or-one row exists per (guild_id, detector_kind); the value columns are a
// superset and each detector reads only the ones it defines.
type ProtectionSetting struct {
	ID                   string           `db:"id"                      json:"id"`
	GuildID              string           `db:"guild_id"                json:"guild_id"`
	DetectorKind         DetectorKind     `db:"detector_kind"           json:"detector_kind"`
	Action               PunishmentAction `db:"action"                  json:"action"`
	Threshold            int              `db:"threshold"               json:"threshold"`
	WindowSeconds        int              `db:"window_seconds"          json:"window_seconds"`
	DurationMinutes      int              `db:"duration_minutes"        json:"duration_minutes"`
	MinAccountAgeMinutes int              `db:"min_account_age_minutes" json:"min_account_age_minutes"`
	RoleID               *string          `db:"role_id"                 json:"role_id,omitempty"`
	IgnoredChannelIDs    pq.StringArray   `db:"ignored_channel_ids"     json:"ignored_channel_ids"`
	CreatedAt            time.Time        `db:"created_at"              json:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at"              json:"updated_at"`
}

// GuildProtectionSettings aggregates the configured detectors of one guild
type GuildProtectionSettings struct {
	GuildID  GuildID          `json:"guild_id"`
	AntiSpam *AntiSpamSetting `json:"anti_spam,omitempty"`
	AntiRaid *AntiRaidSetting `json:"anti_raid,omitempty"`
	AntiAlt  *AntiAltSetting  `json:"anti_alt,omitempty"`
}

// DetectorStatus is the live view of one detector exposed by the status API
type DetectorStatus struct {
	Enabled   bool             `json:"enabled"`
	Action    PunishmentAction `json:"action,omitempty"`
	Threshold int              `json:"threshold,omitempty"`
	LiveCount int64            `json:"live_count"`
}

// GuildProtectionStatus is the per-guild snapshot exposed by the status API
type GuildProtectionStatus struct {
	GuildID    GuildID        `json:"guild_id"`
	GuildName  string         `json:"guild_name,omitempty"`
	AntiSpam   DetectorStatus `json:"anti_spam"`
	AntiRaid   DetectorStatus `json:"anti_raid"`
	AntiAlt    DetectorStatus `json:"anti_alt"`
	QueueDepth int            `json:"queue_depth"`
}
