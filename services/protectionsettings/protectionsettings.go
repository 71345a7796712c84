package protectionsettings

import (
	"context"
	"fmt"
	"log"

	"github.com/lib/pq"
	"github.com/samber/mo"

	"guardbackend/db"
	"guardbackend/models"
)

type ProtectionSettingsService struct {
	settingsRepo *db.PostgresProtectionSettingsRepository
}

func NewProtectionSettingsService(repo *db.PostgresProtectionSettingsRepository) *ProtectionSettingsService {
	return &ProtectionSettingsService{settingsRepo: repo}
}

func (s *ProtectionSettingsService) SetAntiSpamSetting(
	ctx context.Context,
	setting *models.AntiSpamSetting,
) (*models.AntiSpamSetting, error) {
	log.Printf("📋 Starting to set anti-spam setting for guild: %s", setting.GuildID)
	if setting.GuildID == "" {
		return nil, fmt.Errorf("guild_id must not be empty")
	}
	if setting.MessageThreshold < 1 {
		return nil, fmt.Errorf("message_threshold must be at least 1")
	}
	if !setting.Action.IsValid() {
		return nil, fmt.Errorf("unsupported punishment action: %s", setting.Action)
	}

	row := &models.ProtectionSetting{
		GuildID:           string(setting.GuildID),
		DetectorKind:      models.DetectorSpam,
		Action:            setting.Action,
		Threshold:         setting.MessageThreshold,
		DurationMinutes:   setting.MuteTimeMinutes,
		RoleID:            roleIDToString(setting.RoleID),
		IgnoredChannelIDs: pq.StringArray(channelIDsToStrings(setting.IgnoredChannelIDs)),
	}
	stored, err := s.settingsRepo.UpsertProtectionSetting(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert anti-spam setting: %w", err)
	}

	log.Printf("📋 Completed successfully - stored anti-spam setting %s for guild: %s", stored.ID, setting.GuildID)
	return antiSpamFromRow(stored), nil
}

func (s *ProtectionSettingsService) GetAntiSpamSetting(
	ctx context.Context,
	guildID models.GuildID,
) (mo.Option[*models.AntiSpamSetting], error) {
	if guildID == "" {
		return mo.None[*models.AntiSpamSetting](), fmt.Errorf("guild_id must not be empty")
	}

	maybeRow, err := s.settingsRepo.GetProtectionSetting(ctx, string(guildID), models.DetectorSpam)
	if err != nil {
		return mo.None[*models.AntiSpamSetting](), fmt.Errorf("failed to get anti-spam setting: %w", err)
	}
	if !maybeRow.IsPresent() {
		return mo.None[*models.AntiSpamSetting](), nil
	}

	return mo.Some(antiSpamFromRow(maybeRow.MustGet())), nil
}

func (s *ProtectionSettingsService) ClearAntiSpamSetting(ctx context.Context, guildID models.GuildID) error {
	return s.clearSetting(ctx, guildID, models.DetectorSpam)
}

func (s *ProtectionSettingsService) SetAntiRaidSetting(
	ctx context.Context,
	setting *models.AntiRaidSetting,
) (*models.AntiRaidSetting, error) {
	log.Printf("📋 Starting to set anti-raid setting for guild: %s", setting.GuildID)
	if setting.GuildID == "" {
		return nil, fmt.Errorf("guild_id must not be empty")
	}
	if setting.UserThreshold < 2 {
		return nil, fmt.Errorf("user_threshold must be at least 2")
	}
	if setting.WindowSeconds < 1 {
		return nil, fmt.Errorf("window_seconds must be at least 1")
	}
	if !setting.Action.IsValid() {
		return nil, fmt.Errorf("unsupported punishment action: %s", setting.Action)
	}

	row := &models.ProtectionSetting{
		GuildID:         string(setting.GuildID),
		DetectorKind:    models.DetectorRaid,
		Action:          setting.Action,
		Threshold:       setting.UserThreshold,
		WindowSeconds:   setting.WindowSeconds,
		DurationMinutes: setting.PunishDurationMinutes,
		RoleID:          roleIDToString(setting.RoleID),
	}
	stored, err := s.settingsRepo.UpsertProtectionSetting(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert anti-raid setting: %w", err)
	}

	log.Printf("📋 Completed successfully - stored anti-raid setting %s for guild: %s", stored.ID, setting.GuildID)
	return antiRaidFromRow(stored), nil
}

func (s *ProtectionSettingsService) GetAntiRaidSetting(
	ctx context.Context,
	guildID models.GuildID,
) (mo.Option[*models.AntiRaidSetting], error) {
	if guildID == "" {
		return mo.None[*models.AntiRaidSetting](), fmt.Errorf("guild_id must not be empty")
	}

	maybeRow, err := s.settingsRepo.GetProtectionSetting(ctx, string(guildID), models.DetectorRaid)
	if err != nil {
		return mo.None[*models.AntiRaidSetting](), fmt.Errorf("failed to get anti-raid setting: %w", err)
	}
	if !maybeRow.IsPresent() {
		return mo.None[*models.AntiRaidSetting](), nil
	}

	return mo.Some(antiRaidFromRow(maybeRow.MustGet())), nil
}

func (s *ProtectionSettingsService) ClearAntiRaidSetting(ctx context.Context, guildID models.GuildID) error {
	return s.clearSetting(ctx, guildID, models.DetectorRaid)
}

func (s *ProtectionSettingsService) SetAntiAltSetting(
	ctx context.Context,
	setting *models.AntiAltSetting,
) (*models.AntiAltSetting, error) {
	log.Printf("📋 Starting to set anti-alt setting for guild: %s", setting.GuildID)
	if setting.GuildID == "" {
		return nil, fmt.Errorf("guild_id must not be empty")
	}
	if setting.MinAccountAgeMinutes < 1 {
		return nil, fmt.Errorf("min_account_age_minutes must be at least 1")
	}
	if !setting.Action.IsValid() {
		return nil, fmt.Errorf("unsupported punishment action: %s", setting.Action)
	}

	row := &models.ProtectionSetting{
		GuildID:              string(setting.GuildID),
		DetectorKind:         models.DetectorAlt,
		Action:               setting.Action,
		MinAccountAgeMinutes: setting.MinAccountAgeMinutes,
		DurationMinutes:      setting.ActionDurationMinutes,
		RoleID:               roleIDToString(setting.RoleID),
	}
	stored, err := s.settingsRepo.UpsertProtectionSetting(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert anti-alt setting: %w", err)
	}

	log.Printf("📋 Completed successfully - stored anti-alt setting %s for guild: %s", stored.ID, setting.GuildID)
	return antiAltFromRow(stored), nil
}

func (s *ProtectionSettingsService) GetAntiAltSetting(
	ctx context.Context,
	guildID models.GuildID,
) (mo.Option[*models.AntiAltSetting], error) {
	if guildID == "" {
		return mo.None[*models.AntiAltSetting](), fmt.Errorf("guild_id must not be empty")
	}

	maybeRow, err := s.settingsRepo.GetProtectionSetting(ctx, string(guildID), models.DetectorAlt)
	if err != nil {
		return mo.None[*models.AntiAltSetting](), fmt.Errorf("failed to get anti-alt setting: %w", err)
	}
	if !maybeRow.IsPresent() {
		return mo.None[*models.AntiAltSetting](), nil
	}

	return mo.Some(antiAltFromRow(maybeRow.MustGet())), nil
}

func (s *ProtectionSettingsService) ClearAntiAltSetting(ctx context.Context, guildID models.GuildID) error {
	return s.clearSetting(ctx, guildID, models.DetectorAlt)
}

// GetGuildSettings fetches every configured detector for one guild
func (s *ProtectionSettingsService) GetGuildSettings(
	ctx context.Context,
	guildID models.GuildID,
) (*models.GuildProtectionSettings, error) {
	if guildID == "" {
		return nil, fmt.Errorf("guild_id must not be empty")
	}

	rows, err := s.settingsRepo.GetProtectionSettingsByGuildID(ctx, string(guildID))
	if err != nil {
		return nil, fmt.Errorf("failed to get guild protection settings: %w", err)
	}

	settings := &models.GuildProtectionSettings{GuildID: guildID}
	for _, row := range rows {
		applyRow(settings, row)
	}
	return settings, nil
}

// ListAllGuildSettings fetches the persisted configuration of every guild,
// grouped per guild (startup sync)
func (s *ProtectionSettingsService) ListAllGuildSettings(
	ctx context.Context,
) ([]*models.GuildProtectionSettings, error) {
	log.Printf("📋 Starting to list all guild protection settings")

	rows, err := s.settingsRepo.GetAllProtectionSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list protection settings: %w", err)
	}

	byGuild := make(map[models.GuildID]*models.GuildProtectionSettings)
	var ordered []*models.GuildProtectionSettings
	for _, row := range rows {
		guildID := models.GuildID(row.GuildID)
		settings, ok := byGuild[guildID]
		if !ok {
			settings = &models.GuildProtectionSettings{GuildID: guildID}
			byGuild[guildID] = settings
			ordered = append(ordered, settings)
		}
		applyRow(settings, row)
	}

	log.Printf("📋 Completed successfully - listed settings for %d guilds", len(ordered))
	return ordered, nil
}

func (s *ProtectionSettingsService) clearSetting(
	ctx context.Context,
	guildID models.GuildID,
	kind models.DetectorKind,
) error {
	log.Printf("📋 Starting to clear %s setting for guild: %s", kind, guildID)
	if guildID == "" {
		return fmt.Errorf("guild_id must not be empty")
	}

	deleted, err := s.settingsRepo.DeleteProtectionSetting(ctx, string(guildID), kind)
	if err != nil {
		return fmt.Errorf("failed to delete %s setting: %w", kind, err)
	}
	if !deleted {
		// Clearing an absent setting is a no-op, not an error
		log.Printf("📋 Completed successfully - no %s setting existed for guild: %s", kind, guildID)
		return nil
	}

	log.Printf("📋 Completed successfully - cleared %s setting for guild: %s", kind, guildID)
	return nil
}

func applyRow(settings *models.GuildProtectionSettings, row *models.ProtectionSetting) {
	switch row.DetectorKind {
	case models.DetectorSpam:
		settings.AntiSpam = antiSpamFromRow(row)
	case models.DetectorRaid:
		settings.AntiRaid = antiRaidFromRow(row)
	case models.DetectorAlt:
		settings.AntiAlt = antiAltFromRow(row)
	}
}

func antiSpamFromRow(row *models.ProtectionSetting) *models.AntiSpamSetting {
	return &models.AntiSpamSetting{
		GuildID:           models.GuildID(row.GuildID),
		MessageThreshold:  row.Threshold,
		Action:            row.Action,
		MuteTimeMinutes:   row.DurationMinutes,
		RoleID:            stringToRoleID(row.RoleID),
		IgnoredChannelIDs: stringsToChannelIDs(row.IgnoredChannelIDs),
	}
}

func antiRaidFromRow(row *models.ProtectionSetting) *models.AntiRaidSetting {
	return &models.AntiRaidSetting{
		GuildID:               models.GuildID(row.GuildID),
		UserThreshold:         row.Threshold,
		WindowSeconds:         row.WindowSeconds,
		Action:                row.Action,
		PunishDurationMinutes: row.DurationMinutes,
		RoleID:                stringToRoleID(row.RoleID),
	}
}

func antiAltFromRow(row *models.ProtectionSetting) *models.AntiAltSetting {
	return &models.AntiAltSetting{
		GuildID:               models.GuildID(row.GuildID),
		MinAccountAgeMinutes:  row.MinAccountAgeMinutes,
		Action:                row.Action,
		ActionDurationMinutes: row.DurationMinutes,
		RoleID:                stringToRoleID(row.RoleID),
	}
}

func roleIDToString(roleID *models.RoleID) *string {
	if roleID == nil {
		return nil
	}
	s := string(*roleID)
	return &s
}

func stringToRoleID(s *string) *models.RoleID {
	if s == nil {
		return nil
	}
	roleID := models.RoleID(*s)
	return &roleID
}

func channelIDsToStrings(channelIDs []models.ChannelID) []string {
	out := make([]string, 0, len(channelIDs))
	for _, id := range channelIDs {
		out = append(out, string(id))
	}
	return out
}

func stringsToChannelIDs(raw []string) []models.ChannelID {
	out := make([]models.ChannelID, 0, len(raw))
	for _, id := range raw {
		out = append(out, models.ChannelID(id))
	}
	return out
}
