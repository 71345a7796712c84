package raid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"guardbackend/models"
	"guardbackend/services/punishqueue"
	"guardbackend/testutils"
)

func setupDetector(setting models.AntiRaidSetting, window time.Duration) (*Detector, *punishqueue.MockPunishmentQueue) {
	queue := new(punishqueue.MockPunishmentQueue)
	queue.On("Enqueue", mock.Anything).Return()

	detector := NewDetector(queue)
	detector.StartGuild(setting)
	detector.guilds[setting.GuildID].window = window
	return detector, queue
}

func batchUserIDs(item *models.PunishQueueItem) []models.UserID {
	ids := make([]models.UserID, 0, len(item.Users))
	for _, user := range item.Users {
		ids = append(ids, user.ID)
	}
	return ids
}

func TestRaidDetector(t *testing.T) {
	t.Run("ThresholdCrossingBatchesAllTrackedJoiners", func(t *testing.T) {
		guildID := testutils.NewGuildID()
		detector, queue := setupDetector(models.AntiRaidSetting{
			GuildID:               guildID,
			UserThreshold:         3,
			WindowSeconds:         10,
			Action:                models.ActionKick,
			PunishDurationMinutes: 0,
		}, time.Second)

		userA := testutils.NewGuildUser()
		userB := testutils.NewGuildUser()
		userC := testutils.NewGuildUser()
		userD := testutils.NewGuildUser()

		detector.OnJoin(guildID, userA)
		detector.OnJoin(guildID, userB)
		queue.AssertNumberOfCalls(t, "Enqueue", 0)

		detector.OnJoin(guildID, userC)
		queue.AssertNumberOfCalls(t, "Enqueue", 1)

		item := queue.Calls[0].Arguments.Get(0).(*models.PunishQueueItem)
		assert.Equal(t, guildID, item.GuildID)
		assert.Equal(t, models.DetectorRaid, item.Detector)
		assert.Equal(t, models.ActionKick, item.Action)
		assert.ElementsMatch(t,
			[]models.UserID{userA.ID, userB.ID, userC.ID},
			batchUserIDs(item))

		// The trigger consumed the set: the next join counts fresh
		detector.OnJoin(guildID, userD)
		queue.AssertNumberOfCalls(t, "Enqueue", 1)
		assert.Equal(t, 1, detector.LiveCount(guildID))
	})

	t.Run("ThresholdTwoBatchesPair", func(t *testing.T) {
		guildID := testutils.NewGuildID()
		roleID := models.RoleID("role-muted")
		detector, queue := setupDetector(models.AntiRaidSetting{
			GuildID:               guildID,
			UserThreshold:         2,
			WindowSeconds:         10,
			Action:                models.ActionMute,
			PunishDurationMinutes: 30,
			RoleID:                &roleID,
		}, time.Second)

		detector.OnJoin(guildID, testutils.NewGuildUser())
		detector.OnJoin(guildID, testutils.NewGuildUser())

		queue.AssertNumberOfCalls(t, "Enqueue", 1)
		item := queue.Calls[0].Arguments.Get(0).(*models.PunishQueueItem)
		assert.Len(t, item.Users, 2)
		assert.Equal(t, 30, item.DurationMinutes)
		// Mute punishments are unenforceable without the configured role
		require.NotNil(t, item.RoleID)
		assert.Equal(t, roleID, *item.RoleID)
	})

	t.Run("DuplicateJoinCountsOnce", func(t *testing.T) {
		guildID := testutils.NewGuildID()
		detector, queue := setupDetector(models.AntiRaidSetting{
			GuildID:       guildID,
			UserThreshold: 2,
			WindowSeconds: 10,
			Action:        models.ActionBan,
		}, time.Second)

		user := testutils.NewGuildUser()
		detector.OnJoin(guildID, user)
		detector.OnJoin(guildID, user)

		queue.AssertNumberOfCalls(t, "Enqueue", 0)
		assert.Equal(t, 1, detector.LiveCount(guildID))
	})

	t.Run("JoinersExpireIndependently", func(t *testing.T) {
		guildID := testutils.NewGuildID()
		detector, queue := setupDetector(models.AntiRaidSetting{
			GuildID:       guildID,
			UserThreshold: 3,
			WindowSeconds: 10,
			Action:        models.ActionBan,
		}, 80*time.Millisecond)

		detector.OnJoin(guildID, testutils.NewGuildUser())

		require.Eventually(t, func() bool {
			return detector.LiveCount(guildID) == 0
		}, time.Second, 10*time.Millisecond)

		// The expired joiner no longer counts toward the threshold
		userB := testutils.NewGuildUser()
		userC := testutils.NewGuildUser()
		detector.OnJoin(guildID, userB)
		detector.OnJoin(guildID, userC)
		queue.AssertNumberOfCalls(t, "Enqueue", 0)

		detector.OnJoin(guildID, testutils.NewGuildUser())
		queue.AssertNumberOfCalls(t, "Enqueue", 1)
	})

	t.Run("RejoinAfterTriggerCountsFresh", func(t *testing.T) {
		guildID := testutils.NewGuildID()
		detector, queue := setupDetector(models.AntiRaidSetting{
			GuildID:       guildID,
			UserThreshold: 2,
			WindowSeconds: 10,
			Action:        models.ActionKick,
		}, 80*time.Millisecond)

		user := testutils.NewGuildUser()
		detector.OnJoin(guildID, user)
		detector.OnJoin(guildID, testutils.NewGuildUser())
		queue.AssertNumberOfCalls(t, "Enqueue", 1)

		// The stale timer from the consumed entry must not evict the rejoin
		detector.OnJoin(guildID, user)
		time.Sleep(40 * time.Millisecond)
		assert.Equal(t, 1, detector.LiveCount(guildID))
	})

	t.Run("InactiveGuildDropsJoins", func(t *testing.T) {
		queue := new(punishqueue.MockPunishmentQueue)
		detector := NewDetector(queue)

		detector.OnJoin(testutils.NewGuildID(), testutils.NewGuildUser())

		queue.AssertNumberOfCalls(t, "Enqueue", 0)
	})

	t.Run("StopGuildIsIdempotent", func(t *testing.T) {
		guildID := testutils.NewGuildID()
		detector, queue := setupDetector(models.AntiRaidSetting{
			GuildID:       guildID,
			UserThreshold: 5,
			WindowSeconds: 10,
			Action:        models.ActionBan,
		}, time.Second)

		detector.OnJoin(guildID, testutils.NewGuildUser())
		detector.StopGuild(guildID)
		detector.StopGuild(guildID)

		assert.False(t, detector.IsRunning(guildID))
		assert.Equal(t, 0, detector.LiveCount(guildID))

		detector.OnJoin(guildID, testutils.NewGuildUser())
		queue.AssertNumberOfCalls(t, "Enqueue", 0)
	})
}
