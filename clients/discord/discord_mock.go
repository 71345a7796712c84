package discord

import (
	"context"

	"github.com/stretchr/testify/mock"

	"guardbackend/clients"
)

// MockDiscordClient implements the clients.DiscordClient interface for testing
type MockDiscordClient struct {
	mock.Mock
}

// ApplyPunishment mocks executing a punishment against a guild member
func (m *MockDiscordClient) ApplyPunishment(ctx context.Context, req clients.PunishmentRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// GetOrCreateMuteRole mocks resolving the guild's mute role
func (m *MockDiscordClient) GetOrCreateMuteRole(ctx context.Context, guildID string) (*clients.DiscordRole, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.DiscordRole), args.Error(1)
}

// GetGuildByID mocks fetching guild information
func (m *MockDiscordClient) GetGuildByID(ctx context.Context, guildID string) (*clients.DiscordGuild, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.DiscordGuild), args.Error(1)
}
