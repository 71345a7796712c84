package protectionsettings

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"guardbackend/models"
)

// MockProtectionSettingsService implements the services.ProtectionSettingsService interface for testing
type MockProtectionSettingsService struct {
	mock.Mock
}

func (m *MockProtectionSettingsService) SetAntiSpamSetting(
	ctx context.Context,
	setting *models.AntiSpamSetting,
) (*models.AntiSpamSetting, error) {
	args := m.Called(ctx, setting)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AntiSpamSetting), args.Error(1)
}

func (m *MockProtectionSettingsService) GetAntiSpamSetting(
	ctx context.Context,
	guildID models.GuildID,
) (mo.Option[*models.AntiSpamSetting], error) {
	args := m.Called(ctx, guildID)
	return args.Get(0).(mo.Option[*models.AntiSpamSetting]), args.Error(1)
}

func (m *MockProtectionSettingsService) ClearAntiSpamSetting(ctx context.Context, guildID models.GuildID) error {
	args := m.Called(ctx, guildID)
	return args.Error(0)
}

func (m *MockProtectionSettingsService) SetAntiRaidSetting(
	ctx context.Context,
	setting *models.AntiRaidSetting,
) (*models.AntiRaidSetting, error) {
	args := m.Called(ctx, setting)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AntiRaidSetting), args.Error(1)
}

func (m *MockProtectionSettingsService) GetAntiRaidSetting(
	ctx context.Context,
	guildID models.GuildID,
) (mo.Option[*models.AntiRaidSetting], error) {
	args := m.Called(ctx, guildID)
	return args.Get(0).(mo.Option[*models.AntiRaidSetting]), args.Error(1)
}

func (m *MockProtectionSettingsService) ClearAntiRaidSetting(ctx context.Context, guildID models.GuildID) error {
	args := m.Called(ctx, guildID)
	return args.Error(0)
}

func (m *MockProtectionSettingsService) SetAntiAltSetting(
	ctx context.Context,
	setting *models.AntiAltSetting,
) (*models.AntiAltSetting, error) {
	args := m.Called(ctx, setting)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AntiAltSetting), args.Error(1)
}

func (m *MockProtectionSettingsService) GetAntiAltSetting(
	ctx context.Context,
	guildID models.GuildID,
) (mo.Option[*models.AntiAltSetting], error) {
	args := m.Called(ctx, guildID)
	return args.Get(0).(mo.Option[*models.AntiAltSetting]), args.Error(1)
}

func (m *MockProtectionSettingsService) ClearAntiAltSetting(ctx context.Context, guildID models.GuildID) error {
	args := m.Called(ctx, guildID)
	return args.Error(0)
}

func (m *MockProtectionSettingsService) GetGuildSettings(
	ctx context.Context,
	guildID models.GuildID,
) (*models.GuildProtectionSettings, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuildProtectionSettings), args.Error(1)
}

func (m *MockProtectionSettingsService) ListAllGuildSettings(
	ctx context.Context,
) ([]*models.GuildProtectionSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.GuildProtectionSettings), args.Error(1)
}
