package alt

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"guardbackend/core"
	"guardbackend/models"
	"guardbackend/services"
)

// Detector punishes accounts younger than the configured minimum age the
// moment they join. A consumed join never reaches the raid detector.
type Detector struct {
	queue services.PunishmentQueue

	mu     sync.RWMutex
	guilds map[models.GuildID]*guildState
}

type guildState struct {
	setting models.AntiAltSetting
	minAge  time.Duration

	// running trigger counter, diagnostic only
	triggers atomic.Int64
}

func NewDetector(queue services.PunishmentQueue) *Detector {
	return &Detector{guilds: make(map[models.GuildID]*guildState), queue: queue}
}

// StartGuild activates the detector for one guild, replacing any previous state
func (d *Detector) StartGuild(setting models.AntiAltSetting) {
	d.mu.Lock()
	d.guilds[setting.GuildID] = &guildState{
		setting: setting,
		minAge:  time.Duration(setting.MinAccountAgeMinutes) * time.Minute,
	}
	d.mu.Unlock()

	log.Printf("🛡️ Anti-alt running for guild %s (min account age %dm, action %s)",
		setting.GuildID, setting.MinAccountAgeMinutes, setting.Action)
}

// StopGuild deactivates the detector for one guild and discards its state.
// Stopping an already-stopped guild is a no-op.
func (d *Detector) StopGuild(guildID models.GuildID) {
	d.mu.Lock()
	_, ok := d.guilds[guildID]
	delete(d.guilds, guildID)
	d.mu.Unlock()

	if ok {
		log.Printf("🛡️ Anti-alt stopped for guild %s", guildID)
	}
}

// IsRunning reports whether the detector is active for the guild
func (d *Detector) IsRunning(guildID models.GuildID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.guilds[guildID]
	return ok
}

// TriggerCount returns how many alt accounts were punished for the guild
func (d *Detector) TriggerCount(guildID models.GuildID) int64 {
	d.mu.RLock()
	g := d.guilds[guildID]
	d.mu.RUnlock()
	if g == nil {
		return 0
	}
	return g.triggers.Load()
}

// OnJoin evaluates one member join. It returns true when the join was consumed
// by an alt trigger, in which case the raid detector must not see it.
func (d *Detector) OnJoin(guildID models.GuildID, user models.GuildUser) bool {
	d.mu.RLock()
	g := d.guilds[guildID]
	d.mu.RUnlock()
	if g == nil {
		return false
	}

	// Unknown creation time cannot prove the account is young
	if user.AccountCreatedAt.IsZero() {
		return false
	}
	if time.Since(user.AccountCreatedAt) >= g.minAge {
		return false
	}

	g.triggers.Add(1)
	log.Printf("🛡️ Anti-alt triggered in guild %s for user %s (account created %s)",
		guildID, user.ID, user.AccountCreatedAt.Format(time.RFC3339))
	d.queue.Enqueue(&models.PunishQueueItem{
		ID:              core.NewID("pqi"),
		GuildID:         guildID,
		Users:           []models.GuildUser{user},
		Action:          g.setting.Action,
		Detector:        models.DetectorAlt,
		DurationMinutes: g.setting.ActionDurationMinutes,
		RoleID:          g.setting.RoleID,
		Reason:          "account younger than minimum age",
	})
	return true
}
