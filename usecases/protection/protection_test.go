package protection

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"guardbackend/clients"
	discordclient "guardbackend/clients/discord"
	"guardbackend/models"
	"guardbackend/services/protectionsettings"
	"guardbackend/services/punishqueue"
	"guardbackend/services/txmanager"
	"guardbackend/testutils"
	"guardbackend/triggernotif"
)

type engineFixture struct {
	engine   *ProtectionEngine
	settings *protectionsettings.MockProtectionSettingsService
	client   *discordclient.MockDiscordClient
	queue    *punishqueue.MockPunishmentQueue
	tx       *txmanager.MockTransactionManager
	notifier *triggernotif.MockProtectionNotifier
}

func setupEngine() *engineFixture {
	f := &engineFixture{
		settings: new(protectionsettings.MockProtectionSettingsService),
		client:   new(discordclient.MockDiscordClient),
		queue:    new(punishqueue.MockPunishmentQueue),
		tx:       new(txmanager.MockTransactionManager),
		notifier: new(triggernotif.MockProtectionNotifier),
	}
	f.engine = NewProtectionEngine(f.settings, f.client, f.queue, f.tx, f.notifier)
	return f
}

func TestProtectionEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("StartAntiSpamPersistsAndRoutesMessages", func(t *testing.T) {
		f := setupEngine()
		guildID := testutils.NewGuildID()
		setting := &models.AntiSpamSetting{
			GuildID:          guildID,
			MessageThreshold: 1,
			Action:           models.ActionBan,
		}
		f.settings.On("SetAntiSpamSetting", ctx, setting).Return(setting, nil)
		f.queue.On("Enqueue", mock.Anything).Return()

		err := f.engine.StartAntiSpam(ctx, setting)

		require.NoError(t, err)
		f.settings.AssertExpectations(t)

		f.engine.OnMessage(models.GuildMessageEvent{
			GuildID:   guildID,
			User:      testutils.NewGuildUser(),
			ChannelID: "channel-1",
		})
		f.queue.AssertNumberOfCalls(t, "Enqueue", 1)
	})

	t.Run("MessagesForStoppedDetectorAreDropped", func(t *testing.T) {
		f := setupEngine()

		f.engine.OnMessage(models.GuildMessageEvent{
			GuildID:   testutils.NewGuildID(),
			User:      testutils.NewGuildUser(),
			ChannelID: "channel-1",
		})

		f.queue.AssertNumberOfCalls(t, "Enqueue", 0)
	})

	t.Run("StartAntiSpamResolvesMuteRoleForMuteAction", func(t *testing.T) {
		f := setupEngine()
		guildID := testutils.NewGuildID()
		setting := &models.AntiSpamSetting{
			GuildID:          guildID,
			MessageThreshold: 5,
			Action:           models.ActionMute,
			MuteTimeMinutes:  30,
		}
		f.client.On("GetOrCreateMuteRole", ctx, string(guildID)).
			Return(&clients.DiscordRole{ID: "role-muted", Name: "Muted"}, nil)
		f.settings.On("SetAntiSpamSetting", ctx, setting).Return(setting, nil)

		err := f.engine.StartAntiSpam(ctx, setting)

		require.NoError(t, err)
		require.NotNil(t, setting.RoleID)
		assert.Equal(t, models.RoleID("role-muted"), *setting.RoleID)
	})

	t.Run("MuteRoleFailureNotifiesAndStaysStopped", func(t *testing.T) {
		f := setupEngine()
		guildID := testutils.NewGuildID()
		setting := &models.AntiSpamSetting{
			GuildID:          guildID,
			MessageThreshold: 5,
			Action:           models.ActionMute,
		}
		f.client.On("GetOrCreateMuteRole", ctx, string(guildID)).
			Return(nil, fmt.Errorf("missing manage roles permission"))
		f.notifier.On("OnProtectionTriggered", mock.Anything).Return()

		err := f.engine.StartAntiSpam(ctx, setting)

		require.Error(t, err)
		f.notifier.AssertNumberOfCalls(t, "OnProtectionTriggered", 1)
		trigger := f.notifier.Calls[0].Arguments.Get(0).(models.ProtectionTrigger)
		assert.True(t, trigger.ConfigFailure)
		assert.Equal(t, guildID, trigger.GuildID)
		assert.Equal(t, models.DetectorSpam, trigger.Detector)

		// The setting was never persisted and the detector never started
		f.settings.AssertNumberOfCalls(t, "SetAntiSpamSetting", 0)
		assert.False(t, f.engine.spamDetector.IsRunning(guildID))
	})

	t.Run("PreResolvedRoleSkipsMuteRoleLookup", func(t *testing.T) {
		f := setupEngine()
		roleID := models.RoleID("role-existing")
		setting := &models.AntiSpamSetting{
			GuildID:          testutils.NewGuildID(),
			MessageThreshold: 5,
			Action:           models.ActionMute,
			RoleID:           &roleID,
		}
		f.settings.On("SetAntiSpamSetting", ctx, setting).Return(setting, nil)

		err := f.engine.StartAntiSpam(ctx, setting)

		require.NoError(t, err)
		f.client.AssertNumberOfCalls(t, "GetOrCreateMuteRole", 0)
	})

	t.Run("StopAntiSpamIsIdempotent", func(t *testing.T) {
		f := setupEngine()
		guildID := testutils.NewGuildID()
		f.settings.On("ClearAntiSpamSetting", ctx, guildID).Return(nil)

		require.NoError(t, f.engine.StopAntiSpam(ctx, guildID))
		require.NoError(t, f.engine.StopAntiSpam(ctx, guildID))

		assert.False(t, f.engine.spamDetector.IsRunning(guildID))
		f.settings.AssertNumberOfCalls(t, "ClearAntiSpamSetting", 2)
	})

	t.Run("StartAntiRaidRoutesJoins", func(t *testing.T) {
		f := setupEngine()
		guildID := testutils.NewGuildID()
		setting := &models.AntiRaidSetting{
			GuildID:       guildID,
			UserThreshold: 2,
			WindowSeconds: 10,
			Action:        models.ActionKick,
		}
		f.settings.On("SetAntiRaidSetting", ctx, setting).Return(setting, nil)
		f.queue.On("Enqueue", mock.Anything).Return()

		require.NoError(t, f.engine.StartAntiRaid(ctx, setting))

		f.engine.OnUserJoin(models.GuildMemberJoinEvent{GuildID: guildID, User: testutils.NewGuildUser()})
		f.engine.OnUserJoin(models.GuildMemberJoinEvent{GuildID: guildID, User: testutils.NewGuildUser()})

		f.queue.AssertNumberOfCalls(t, "Enqueue", 1)
		item := f.queue.Calls[0].Arguments.Get(0).(*models.PunishQueueItem)
		assert.Equal(t, models.DetectorRaid, item.Detector)
		assert.Len(t, item.Users, 2)
	})

	t.Run("StartAntiRaidResolvesMuteRoleForMuteAction", func(t *testing.T) {
		f := setupEngine()
		guildID := testutils.NewGuildID()
		setting := &models.AntiRaidSetting{
			GuildID:               guildID,
			UserThreshold:         2,
			WindowSeconds:         10,
			Action:                models.ActionMute,
			PunishDurationMinutes: 30,
		}
		f.client.On("GetOrCreateMuteRole", ctx, string(guildID)).
			Return(&clients.DiscordRole{ID: "role-muted", Name: "Muted"}, nil)
		f.settings.On("SetAntiRaidSetting", ctx, setting).Return(setting, nil)
		f.queue.On("Enqueue", mock.Anything).Return()

		err := f.engine.StartAntiRaid(ctx, setting)

		require.NoError(t, err)
		require.NotNil(t, setting.RoleID)
		assert.Equal(t, models.RoleID("role-muted"), *setting.RoleID)

		// The batched raid item must carry the resolved role or every
		// enforcement call would be rejected by the mute applier
		f.engine.OnUserJoin(models.GuildMemberJoinEvent{GuildID: guildID, User: testutils.NewGuildUser()})
		f.engine.OnUserJoin(models.GuildMemberJoinEvent{GuildID: guildID, User: testutils.NewGuildUser()})

		f.queue.AssertNumberOfCalls(t, "Enqueue", 1)
		item := f.queue.Calls[0].Arguments.Get(0).(*models.PunishQueueItem)
		assert.Equal(t, models.DetectorRaid, item.Detector)
		require.NotNil(t, item.RoleID)
		assert.Equal(t, models.RoleID("role-muted"), *item.RoleID)
	})

	t.Run("RaidMuteRoleFailureNotifiesAndStaysStopped", func(t *testing.T) {
		f := setupEngine()
		guildID := testutils.NewGuildID()
		setting := &models.AntiRaidSetting{
			GuildID:       guildID,
			UserThreshold: 2,
			WindowSeconds: 10,
			Action:        models.ActionChatMute,
		}
		f.client.On("GetOrCreateMuteRole", ctx, string(guildID)).
			Return(nil, fmt.Errorf("missing manage roles permission"))
		f.notifier.On("OnProtectionTriggered", mock.Anything).Return()

		err := f.engine.StartAntiRaid(ctx, setting)

		require.Error(t, err)
		trigger := f.notifier.Calls[0].Arguments.Get(0).(models.ProtectionTrigger)
		assert.True(t, trigger.ConfigFailure)
		assert.Equal(t, models.DetectorRaid, trigger.Detector)
		f.settings.AssertNumberOfCalls(t, "SetAntiRaidSetting", 0)
		assert.False(t, f.engine.raidDetector.IsRunning(guildID))
	})

	t.Run("AltConsumedJoinNeverReachesRaidCount", func(t *testing.T) {
		f := setupEngine()
		guildID := testutils.NewGuildID()
		altSetting := &models.AntiAltSetting{
			GuildID:              guildID,
			MinAccountAgeMinutes: 60,
			Action:               models.ActionKick,
		}
		raidSetting := &models.AntiRaidSetting{
			GuildID:       guildID,
			UserThreshold: 2,
			WindowSeconds: 10,
			Action:        models.ActionBan,
		}
		f.settings.On("SetAntiAltSetting", ctx, altSetting).Return(altSetting, nil)
		f.settings.On("SetAntiRaidSetting", ctx, raidSetting).Return(raidSetting, nil)
		f.queue.On("Enqueue", mock.Anything).Return()

		require.NoError(t, f.engine.StartAntiAlt(ctx, altSetting))
		require.NoError(t, f.engine.StartAntiRaid(ctx, raidSetting))

		young := testutils.NewGuildUser()
		young.AccountCreatedAt = time.Now().Add(-10 * time.Minute)
		old := testutils.NewGuildUser()
		old.AccountCreatedAt = time.Now().Add(-48 * time.Hour)

		f.engine.OnUserJoin(models.GuildMemberJoinEvent{GuildID: guildID, User: young})

		// Only the alt punishment fired; the raid count excludes the consumed join
		f.queue.AssertNumberOfCalls(t, "Enqueue", 1)
		item := f.queue.Calls[0].Arguments.Get(0).(*models.PunishQueueItem)
		assert.Equal(t, models.DetectorAlt, item.Detector)
		assert.Equal(t, 0, f.engine.raidDetector.LiveCount(guildID))

		f.engine.OnUserJoin(models.GuildMemberJoinEvent{GuildID: guildID, User: old})
		f.queue.AssertNumberOfCalls(t, "Enqueue", 1)
		assert.Equal(t, 1, f.engine.raidDetector.LiveCount(guildID))
	})

	t.Run("DisableAllProtectionClearsAtomicallyAndStopsDetectors", func(t *testing.T) {
		f := setupEngine()
		guildID := testutils.NewGuildID()
		spamSetting := &models.AntiSpamSetting{GuildID: guildID, MessageThreshold: 5, Action: models.ActionBan}
		f.settings.On("SetAntiSpamSetting", ctx, spamSetting).Return(spamSetting, nil)
		require.NoError(t, f.engine.StartAntiSpam(ctx, spamSetting))

		f.tx.On("WithTransaction", ctx, mock.Anything).Return(nil)
		f.settings.On("ClearAntiSpamSetting", ctx, guildID).Return(nil)
		f.settings.On("ClearAntiRaidSetting", ctx, guildID).Return(nil)
		f.settings.On("ClearAntiAltSetting", ctx, guildID).Return(nil)

		require.NoError(t, f.engine.DisableAllProtection(ctx, guildID))

		f.tx.AssertNumberOfCalls(t, "WithTransaction", 1)
		f.settings.AssertNumberOfCalls(t, "ClearAntiSpamSetting", 1)
		f.settings.AssertNumberOfCalls(t, "ClearAntiRaidSetting", 1)
		f.settings.AssertNumberOfCalls(t, "ClearAntiAltSetting", 1)
		assert.False(t, f.engine.spamDetector.IsRunning(guildID))
	})

	t.Run("DisableAllProtectionKeepsDetectorsOnClearFailure", func(t *testing.T) {
		f := setupEngine()
		guildID := testutils.NewGuildID()
		spamSetting := &models.AntiSpamSetting{GuildID: guildID, MessageThreshold: 5, Action: models.ActionBan}
		f.settings.On("SetAntiSpamSetting", ctx, spamSetting).Return(spamSetting, nil)
		require.NoError(t, f.engine.StartAntiSpam(ctx, spamSetting))

		f.tx.On("WithTransaction", ctx, mock.Anything).Return(fmt.Errorf("connection reset"))

		err := f.engine.DisableAllProtection(ctx, guildID)

		require.Error(t, err)
		assert.True(t, f.engine.spamDetector.IsRunning(guildID))
	})

	t.Run("SyncGuildsFromStoreStartsConfiguredDetectors", func(t *testing.T) {
		f := setupEngine()
		guildA := testutils.NewGuildID()
		guildB := testutils.NewGuildID()
		f.settings.On("ListAllGuildSettings", ctx).Return([]*models.GuildProtectionSettings{
			{
				GuildID:  guildA,
				AntiSpam: &models.AntiSpamSetting{GuildID: guildA, MessageThreshold: 5, Action: models.ActionBan},
				AntiRaid: &models.AntiRaidSetting{GuildID: guildA, UserThreshold: 10, WindowSeconds: 10, Action: models.ActionKick},
			},
			{
				GuildID: guildB,
				AntiAlt: &models.AntiAltSetting{GuildID: guildB, MinAccountAgeMinutes: 60, Action: models.ActionKick},
			},
		}, nil)

		require.NoError(t, f.engine.SyncGuildsFromStore(ctx))

		assert.True(t, f.engine.spamDetector.IsRunning(guildA))
		assert.True(t, f.engine.raidDetector.IsRunning(guildA))
		assert.False(t, f.engine.altDetector.IsRunning(guildA))
		assert.True(t, f.engine.altDetector.IsRunning(guildB))
		// No enforcement calls happen during a sync
		f.client.AssertNumberOfCalls(t, "GetOrCreateMuteRole", 0)
	})

	t.Run("HandleGuildAddedAndRemoved", func(t *testing.T) {
		f := setupEngine()
		guildID := testutils.NewGuildID()
		f.settings.On("GetGuildSettings", ctx, guildID).Return(&models.GuildProtectionSettings{
			GuildID:  guildID,
			AntiSpam: &models.AntiSpamSetting{GuildID: guildID, MessageThreshold: 5, Action: models.ActionBan},
		}, nil)

		require.NoError(t, f.engine.HandleGuildAdded(ctx, guildID))
		assert.True(t, f.engine.spamDetector.IsRunning(guildID))

		// Removal discards live state only; nothing is cleared from the store
		f.engine.HandleGuildRemoved(guildID)
		assert.False(t, f.engine.spamDetector.IsRunning(guildID))
		f.settings.AssertNumberOfCalls(t, "ClearAntiSpamSetting", 0)
	})

	t.Run("GuildStatusReportsLiveState", func(t *testing.T) {
		f := setupEngine()
		guildID := testutils.NewGuildID()
		spamSetting := &models.AntiSpamSetting{GuildID: guildID, MessageThreshold: 5, Action: models.ActionBan}
		f.settings.On("SetAntiSpamSetting", ctx, spamSetting).Return(spamSetting, nil)
		require.NoError(t, f.engine.StartAntiSpam(ctx, spamSetting))

		f.engine.OnMessage(models.GuildMessageEvent{
			GuildID:   guildID,
			User:      testutils.NewGuildUser(),
			ChannelID: "channel-1",
		})

		f.settings.On("GetGuildSettings", ctx, guildID).Return(&models.GuildProtectionSettings{
			GuildID:  guildID,
			AntiSpam: spamSetting,
		}, nil)
		f.client.On("GetGuildByID", ctx, string(guildID)).
			Return(&clients.DiscordGuild{ID: string(guildID), Name: "Test Guild"}, nil)
		f.queue.On("Len").Return(3)

		status, err := f.engine.GuildStatus(ctx, guildID)

		require.NoError(t, err)
		assert.Equal(t, "Test Guild", status.GuildName)
		assert.True(t, status.AntiSpam.Enabled)
		assert.Equal(t, models.ActionBan, status.AntiSpam.Action)
		assert.Equal(t, 5, status.AntiSpam.Threshold)
		assert.Equal(t, int64(1), status.AntiSpam.LiveCount)
		assert.False(t, status.AntiRaid.Enabled)
		assert.False(t, status.AntiAlt.Enabled)
		assert.Equal(t, 3, status.QueueDepth)
	})

	t.Run("GuildStatusToleratesGuildLookupFailure", func(t *testing.T) {
		f := setupEngine()
		guildID := testutils.NewGuildID()
		f.settings.On("GetGuildSettings", ctx, guildID).
			Return(&models.GuildProtectionSettings{GuildID: guildID}, nil)
		f.client.On("GetGuildByID", ctx, string(guildID)).
			Return(nil, fmt.Errorf("guild lookup failed"))
		f.queue.On("Len").Return(0)

		status, err := f.engine.GuildStatus(ctx, guildID)

		require.NoError(t, err)
		assert.Empty(t, status.GuildName)
	})

	t.Run("GuildStatusRejectsEmptyGuildID", func(t *testing.T) {
		f := setupEngine()

		_, err := f.engine.GuildStatus(ctx, "")

		require.Error(t, err)
	})
}
