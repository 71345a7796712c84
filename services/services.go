package services

import (
	"context"

	"github.com/samber/mo"

	"guardbackend/models"
)

// ProtectionSettingsService defines the interface for per-guild detector configuration
type ProtectionSettingsService interface {
	SetAntiSpamSetting(ctx context.Context, setting *models.AntiSpamSetting) (*models.AntiSpamSetting, error)
	GetAntiSpamSetting(ctx context.Context, guildID models.GuildID) (mo.Option[*models.AntiSpamSetting], error)
	ClearAntiSpamSetting(ctx context.Context, guildID models.GuildID) error

	SetAntiRaidSetting(ctx context.Context, setting *models.AntiRaidSetting) (*models.AntiRaidSetting, error)
	GetAntiRaidSetting(ctx context.Context, guildID models.GuildID) (mo.Option[*models.AntiRaidSetting], error)
	ClearAntiRaidSetting(ctx context.Context, guildID models.GuildID) error

	SetAntiAltSetting(ctx context.Context, setting *models.AntiAltSetting) (*models.AntiAltSetting, error)
	GetAntiAltSetting(ctx context.Context, guildID models.GuildID) (mo.Option[*models.AntiAltSetting], error)
	ClearAntiAltSetting(ctx context.Context, guildID models.GuildID) error

	GetGuildSettings(ctx context.Context, guildID models.GuildID) (*models.GuildProtectionSettings, error)
	ListAllGuildSettings(ctx context.Context) ([]*models.GuildProtectionSettings, error)
}

// PunishmentQueue defines the interface detectors use to hand off enforcement work
type PunishmentQueue interface {
	// Enqueue adds one punishment item; under overflow the oldest queued item
	// is dropped rather than blocking the caller
	Enqueue(item *models.PunishQueueItem)
	// Len returns the number of queued, not-yet-applied items
	Len() int
}

// ProtectionNotifier defines the interface for the audit notification raised
// after a punishment was processed or a detector failed to start
type ProtectionNotifier interface {
	OnProtectionTriggered(trigger models.ProtectionTrigger)
}

// TransactionManager defines the interface for transaction management
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
