package protection

import (
	"context"
	"fmt"
	"log"

	"guardbackend/clients"
	"guardbackend/models"
	"guardbackend/services"
	"guardbackend/services/alt"
	"guardbackend/services/raid"
	"guardbackend/services/spam"
)

// ProtectionEngine owns the per-guild detector lifecycle, routes inbound
// platform events to running detectors and surfaces configuration failures
// through the same notification channel as successful triggers.
type ProtectionEngine struct {
	settingsService services.ProtectionSettingsService
	discordClient   clients.DiscordClient
	queue           services.PunishmentQueue
	txManager       services.TransactionManager
	notifier        services.ProtectionNotifier

	spamDetector *spam.Detector
	raidDetector *raid.Detector
	altDetector  *alt.Detector
}

func NewProtectionEngine(
	settingsService services.ProtectionSettingsService,
	discordClient clients.DiscordClient,
	queue services.PunishmentQueue,
	txManager services.TransactionManager,
	notifier services.ProtectionNotifier,
) *ProtectionEngine {
	return &ProtectionEngine{
		settingsService: settingsService,
		discordClient:   discordClient,
		queue:           queue,
		txManager:       txManager,
		notifier:        notifier,
		spamDetector:    spam.NewDetector(queue),
		raidDetector:    raid.NewDetector(queue),
		altDetector:     alt.NewDetector(queue),
	}
}

// StartAntiSpam persists the setting and transitions the guild's spam detector
// to Running. For mute-capable actions the guild's mute role is resolved first;
// a role failure is reported once through the notifier and the detector stays
// Stopped.
func (e *ProtectionEngine) StartAntiSpam(ctx context.Context, setting *models.AntiSpamSetting) error {
	log.Printf("📋 Starting anti-spam protection for guild: %s", setting.GuildID)

	if err := e.resolveMuteRole(ctx, setting.GuildID, setting.Action, &setting.RoleID, models.DetectorSpam); err != nil {
		return err
	}

	stored, err := e.settingsService.SetAntiSpamSetting(ctx, setting)
	if err != nil {
		return fmt.Errorf("failed to persist anti-spam setting: %w", err)
	}

	e.spamDetector.StartGuild(*stored)
	log.Printf("📋 Completed successfully - anti-spam protection running for guild: %s", setting.GuildID)
	return nil
}

// StopAntiSpam transitions the guild's spam detector to Stopped, discarding
// its in-memory state, and persists the removal. Idempotent.
func (e *ProtectionEngine) StopAntiSpam(ctx context.Context, guildID models.GuildID) error {
	e.spamDetector.StopGuild(guildID)
	if err := e.settingsService.ClearAntiSpamSetting(ctx, guildID); err != nil {
		return fmt.Errorf("failed to clear anti-spam setting: %w", err)
	}
	return nil
}

// StartAntiRaid persists the setting and transitions the guild's raid detector
// to Running. Mute-capable actions resolve the guild's mute role first, exactly
// like anti-spam.
func (e *ProtectionEngine) StartAntiRaid(ctx context.Context, setting *models.AntiRaidSetting) error {
	log.Printf("📋 Starting anti-raid protection for guild: %s", setting.GuildID)

	if err := e.resolveMuteRole(ctx, setting.GuildID, setting.Action, &setting.RoleID, models.DetectorRaid); err != nil {
		return err
	}

	stored, err := e.settingsService.SetAntiRaidSetting(ctx, setting)
	if err != nil {
		return fmt.Errorf("failed to persist anti-raid setting: %w", err)
	}

	e.raidDetector.StartGuild(*stored)
	log.Printf("📋 Completed successfully - anti-raid protection running for guild: %s", setting.GuildID)
	return nil
}

// StopAntiRaid transitions the guild's raid detector to Stopped. Idempotent.
func (e *ProtectionEngine) StopAntiRaid(ctx context.Context, guildID models.GuildID) error {
	e.raidDetector.StopGuild(guildID)
	if err := e.settingsService.ClearAntiRaidSetting(ctx, guildID); err != nil {
		return fmt.Errorf("failed to clear anti-raid setting: %w", err)
	}
	return nil
}

// StartAntiAlt persists the setting and transitions the guild's alt detector
// to Running
func (e *ProtectionEngine) StartAntiAlt(ctx context.Context, setting *models.AntiAltSetting) error {
	log.Printf("📋 Starting anti-alt protection for guild: %s", setting.GuildID)

	if err := e.resolveMuteRole(ctx, setting.GuildID, setting.Action, &setting.RoleID, models.DetectorAlt); err != nil {
		return err
	}

	stored, err := e.settingsService.SetAntiAltSetting(ctx, setting)
	if err != nil {
		return fmt.Errorf("failed to persist anti-alt setting: %w", err)
	}

	e.altDetector.StartGuild(*stored)
	log.Printf("📋 Completed successfully - anti-alt protection running for guild: %s", setting.GuildID)
	return nil
}

// StopAntiAlt transitions the guild's alt detector to Stopped. Idempotent.
func (e *ProtectionEngine) StopAntiAlt(ctx context.Context, guildID models.GuildID) error {
	e.altDetector.StopGuild(guildID)
	if err := e.settingsService.ClearAntiAltSetting(ctx, guildID); err != nil {
		return fmt.Errorf("failed to clear anti-alt setting: %w", err)
	}
	return nil
}

// DisableAllProtection stops all three detectors and clears their persisted
// settings atomically
func (e *ProtectionEngine) DisableAllProtection(ctx context.Context, guildID models.GuildID) error {
	log.Printf("📋 Starting to disable all protection for guild: %s", guildID)

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.settingsService.ClearAntiSpamSetting(txCtx, guildID); err != nil {
			return err
		}
		if err := e.settingsService.ClearAntiRaidSetting(txCtx, guildID); err != nil {
			return err
		}
		return e.settingsService.ClearAntiAltSetting(txCtx, guildID)
	})
	if err != nil {
		return fmt.Errorf("failed to clear protection settings: %w", err)
	}

	e.stopAllDetectors(guildID)
	log.Printf("📋 Completed successfully - disabled all protection for guild: %s", guildID)
	return nil
}

// OnMessage routes an inbound message event to the guild's spam detector.
// Events for stopped detectors are silently dropped.
func (e *ProtectionEngine) OnMessage(event models.GuildMessageEvent) {
	e.spamDetector.OnMessage(event.GuildID, event.User, event.ChannelID, event.IsAdmin, event.IsBot)
}

// OnUserJoin routes an inbound join event. The alt detector is evaluated with
// priority; a join it consumes never contributes to the raid count.
func (e *ProtectionEngine) OnUserJoin(event models.GuildMemberJoinEvent) {
	if e.altDetector.OnJoin(event.GuildID, event.User) {
		return
	}
	e.raidDetector.OnJoin(event.GuildID, event.User)
}

// SyncGuildsFromStore loads every persisted setting on startup and starts the
// corresponding detectors. Mute roles were resolved when the settings were
// first created, so no enforcement calls happen here.
func (e *ProtectionEngine) SyncGuildsFromStore(ctx context.Context) error {
	log.Printf("📋 Starting to sync guild protection settings from store")

	allSettings, err := e.settingsService.ListAllGuildSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to list guild settings: %w", err)
	}

	for _, guildSettings := range allSettings {
		e.startFromSettings(guildSettings)
	}

	log.Printf("📋 Completed successfully - synced protection for %d guilds", len(allSettings))
	return nil
}

// HandleGuildAdded loads the guild's persisted settings (if any) and starts
// the configured detectors
func (e *ProtectionEngine) HandleGuildAdded(ctx context.Context, guildID models.GuildID) error {
	log.Printf("📋 Guild added, loading protection settings for guild: %s", guildID)

	guildSettings, err := e.settingsService.GetGuildSettings(ctx, guildID)
	if err != nil {
		return fmt.Errorf("failed to load guild settings: %w", err)
	}

	e.startFromSettings(guildSettings)
	return nil
}

// HandleGuildRemoved stops all three detectors and discards their in-memory
// state. Persisted settings survive so a later rejoin restores protection.
func (e *ProtectionEngine) HandleGuildRemoved(guildID models.GuildID) {
	log.Printf("📋 Guild removed, discarding protection state for guild: %s", guildID)
	e.stopAllDetectors(guildID)
}

// GuildStatus returns the live per-detector view exposed by the status API
func (e *ProtectionEngine) GuildStatus(ctx context.Context, guildID models.GuildID) (*models.GuildProtectionStatus, error) {
	if guildID == "" {
		return nil, fmt.Errorf("guild_id must not be empty")
	}

	guildSettings, err := e.settingsService.GetGuildSettings(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load guild settings: %w", err)
	}

	status := &models.GuildProtectionStatus{
		GuildID:    guildID,
		QueueDepth: e.queue.Len(),
	}

	// The guild name is decoration; an unreachable API must not break the status
	if guild, err := e.discordClient.GetGuildByID(ctx, string(guildID)); err != nil {
		log.Printf("⚠️ Failed to fetch guild %s for status: %v", guildID, err)
	} else {
		status.GuildName = guild.Name
	}

	status.AntiSpam = models.DetectorStatus{
		Enabled:   e.spamDetector.IsRunning(guildID),
		LiveCount: int64(e.spamDetector.LiveCount(guildID)),
	}
	if guildSettings.AntiSpam != nil {
		status.AntiSpam.Action = guildSettings.AntiSpam.Action
		status.AntiSpam.Threshold = guildSettings.AntiSpam.MessageThreshold
	}

	status.AntiRaid = models.DetectorStatus{
		Enabled:   e.raidDetector.IsRunning(guildID),
		LiveCount: int64(e.raidDetector.LiveCount(guildID)),
	}
	if guildSettings.AntiRaid != nil {
		status.AntiRaid.Action = guildSettings.AntiRaid.Action
		status.AntiRaid.Threshold = guildSettings.AntiRaid.UserThreshold
	}

	status.AntiAlt = models.DetectorStatus{
		Enabled:   e.altDetector.IsRunning(guildID),
		LiveCount: e.altDetector.TriggerCount(guildID),
	}
	if guildSettings.AntiAlt != nil {
		status.AntiAlt.Action = guildSettings.AntiAlt.Action
		status.AntiAlt.Threshold = guildSettings.AntiAlt.MinAccountAgeMinutes
	}

	return status, nil
}

// resolveMuteRole fills in the guild's mute role for mute-capable actions.
// A failure is surfaced once through the notification channel, tagged as a
// configuration failure, and the detector stays Stopped.
func (e *ProtectionEngine) resolveMuteRole(
	ctx context.Context,
	guildID models.GuildID,
	action models.PunishmentAction,
	roleID **models.RoleID,
	detector models.DetectorKind,
) error {
	if !action.NeedsMuteRole() || *roleID != nil {
		return nil
	}

	role, err := e.discordClient.GetOrCreateMuteRole(ctx, string(guildID))
	if err != nil {
		e.notifier.OnProtectionTriggered(models.ProtectionTrigger{
			GuildID:       guildID,
			Detector:      detector,
			Action:        action,
			ConfigFailure: true,
			Message:       fmt.Sprintf("cannot resolve mute role: %v", err),
		})
		return fmt.Errorf("failed to resolve mute role for guild %s: %w", guildID, err)
	}

	resolved := models.RoleID(role.ID)
	*roleID = &resolved
	return nil
}

func (e *ProtectionEngine) startFromSettings(guildSettings *models.GuildProtectionSettings) {
	if guildSettings.AntiSpam != nil {
		e.spamDetector.StartGuild(*guildSettings.AntiSpam)
	}
	if guildSettings.AntiRaid != nil {
		e.raidDetector.StartGuild(*guildSettings.AntiRaid)
	}
	if guildSettings.AntiAlt != nil {
		e.altDetector.StartGuild(*guildSettings.AntiAlt)
	}
}

func (e *ProtectionEngine) stopAllDetectors(guildID models.GuildID) {
	e.spamDetector.StopGuild(guildID)
	e.raidDetector.StopGuild(guildID)
	e.altDetector.StopGuild(guildID)
}
