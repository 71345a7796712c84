package raid

import (
	"log"
	"sync"
	"time"

	"guardbackend/core"
	"guardbackend/models"
	"guardbackend/services"
)

// Detector tracks the set of recent joiners per guild. Each member of the set
// expires independently after the configured window; crossing the threshold
// snapshots and clears the whole set into one batched punishment.
type Detector struct {
	queue services.PunishmentQueue

	mu     sync.RWMutex
	guilds map[models.GuildID]*guildState
}

type guildState struct {
	setting models.AntiRaidSetting
	window  time.Duration

	mu      sync.Mutex
	joiners map[models.UserID]*joiner
}

type joiner struct {
	user  models.GuildUser
	timer *time.Timer
}

func NewDetector(queue services.PunishmentQueue) *Detector {
	return &Detector{
		queue:  queue,
		guilds: make(map[models.GuildID]*guildState),
	}
}

// StartGuild activates the detector for one guild, replacing any previous state
func (d *Detector) StartGuild(setting models.AntiRaidSetting) {
	d.mu.Lock()
	if previous, ok := d.guilds[setting.GuildID]; ok {
		previous.stopAll()
	}
	d.guilds[setting.GuildID] = &guildState{
		setting: setting,
		window:  time.Duration(setting.WindowSeconds) * time.Second,
		joiners: make(map[models.UserID]*joiner),
	}
	d.mu.Unlock()

	log.Printf("🛡️ Anti-raid running for guild %s (threshold %d over %ds, action %s)",
		setting.GuildID, setting.UserThreshold, setting.WindowSeconds, setting.Action)
}

// StopGuild deactivates the detector for one guild and discards its state.
// Stopping an already-stopped guild is a no-op.
func (d *Detector) StopGuild(guildID models.GuildID) {
	d.mu.Lock()
	g, ok := d.guilds[guildID]
	if ok {
		g.stopAll()
		delete(d.guilds, guildID)
	}
	d.mu.Unlock()

	if ok {
		log.Printf("🛡️ Anti-raid stopped for guild %s", guildID)
	}
}

// IsRunning reports whether the detector is active for the guild
func (d *Detector) IsRunning(guildID models.GuildID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.guilds[guildID]
	return ok
}

// LiveCount returns the number of joiners currently inside the window
func (d *Detector) LiveCount(guildID models.GuildID) int {
	d.mu.RLock()
	g := d.guilds[guildID]
	d.mu.RUnlock()
	if g == nil {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.joiners)
}

// OnJoin feeds one member join into the detector. A user already tracked in
// the window counts once; a user whose entry expired counts fresh again.
func (d *Detector) OnJoin(guildID models.GuildID, user models.GuildUser) {
	d.mu.RLock()
	g := d.guilds[guildID]
	d.mu.RUnlock()
	if g == nil {
		return
	}

	g.mu.Lock()
	if _, ok := g.joiners[user.ID]; ok {
		g.mu.Unlock()
		return
	}

	j := &joiner{user: user}
	j.timer = time.AfterFunc(g.window, func() { g.remove(user.ID, j) })
	g.joiners[user.ID] = j

	var batch []models.GuildUser
	if len(g.joiners) >= g.setting.UserThreshold {
		// Snapshot and clear under the lock: every tracked joiner is consumed
		// by exactly this trigger and their expiry timers are disarmed
		batch = make([]models.GuildUser, 0, len(g.joiners))
		for _, tracked := range g.joiners {
			tracked.timer.Stop()
			batch = append(batch, tracked.user)
		}
		g.joiners = make(map[models.UserID]*joiner)
	}
	g.mu.Unlock()

	if batch == nil {
		return
	}

	log.Printf("🛡️ Anti-raid triggered in guild %s (%d joiners within %ds)",
		guildID, len(batch), g.setting.WindowSeconds)
	d.queue.Enqueue(&models.PunishQueueItem{
		ID:              core.NewID("pqi"),
		GuildID:         guildID,
		Users:           batch,
		Action:          g.setting.Action,
		Detector:        models.DetectorRaid,
		DurationMinutes: g.setting.PunishDurationMinutes,
		RoleID:          g.setting.RoleID,
		Reason:          "join raid detected",
	})
}

// remove expires one joiner independently of the others. The pointer check
// guards against a stale timer deleting a user who rejoined after a trigger
// already consumed their previous entry.
func (g *guildState) remove(userID models.UserID, expired *joiner) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if current, ok := g.joiners[userID]; ok && current == expired {
		delete(g.joiners, userID)
	}
}

func (g *guildState) stopAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for userID, j := range g.joiners {
		j.timer.Stop()
		delete(g.joiners, userID)
	}
}
