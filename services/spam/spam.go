package spam

import (
	"log"
	"sync"
	"time"

	"guardbackend/core"
	"guardbackend/models"
	"guardbackend/services"
)

// messageWindow is the sliding interval one user's message count accumulates
// over before it silently expires
const messageWindow = 5 * time.Second

// Detector tracks per-(guild,user) message counts over a sliding window and
// enqueues exactly one punishment per threshold crossing
type Detector struct {
	queue  services.PunishmentQueue
	window time.Duration

	mu     sync.RWMutex
	guilds map[models.GuildID]*guildState
}

type guildState struct {
	setting models.AntiSpamSetting
	ignored map[models.ChannelID]struct{}

	mu    sync.Mutex
	users map[models.UserID]*userStats
}

// userStats is the live message count of one user. The deadline is refreshed
// on every message; the timer re-arms itself until the deadline really passed.
type userStats struct {
	count    int
	deadline time.Time
	timer    *time.Timer
}

func NewDetector(queue services.PunishmentQueue) *Detector {
	return &Detector{
		queue:  queue,
		window: messageWindow,
		guilds: make(map[models.GuildID]*guildState),
	}
}

// StartGuild activates the detector for one guild, replacing any previous state
func (d *Detector) StartGuild(setting models.AntiSpamSetting) {
	ignored := make(map[models.ChannelID]struct{}, len(setting.IgnoredChannelIDs))
	for _, channelID := range setting.IgnoredChannelIDs {
		ignored[channelID] = struct{}{}
	}

	d.mu.Lock()
	if previous, ok := d.guilds[setting.GuildID]; ok {
		previous.stopAll()
	}
	d.guilds[setting.GuildID] = &guildState{
		setting: setting,
		ignored: ignored,
		users:   make(map[models.UserID]*userStats),
	}
	d.mu.Unlock()

	log.Printf("🛡️ Anti-spam running for guild %s (threshold %d, action %s)",
		setting.GuildID, setting.MessageThreshold, setting.Action)
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
		log.Printf("🛡️ Anti-spam stopped for guild %s", guildID)
	}
}

// IsRunning reports whether the detector is active for the guild
func (d *Detector) IsRunning(guildID models.GuildID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.guilds[guildID]
	return ok
}

// LiveCount returns the number of users currently tracked for the guild
func (d *Detector) LiveCount(guildID models.GuildID) int {
	d.mu.RLock()
	g := d.guilds[guildID]
	d.mu.RUnlock()
	if g == nil {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.users)
}

// OnMessage feeds one inbound message into the detector. Bots, admins,
// ignored channels and inactive guilds are skipped. Whichever concurrent call
// removes the entry at the threshold is the sole trigger owner.
func (d *Detector) OnMessage(
	guildID models.GuildID,
	user models.GuildUser,
	channelID models.ChannelID,
	isAdmin, isBot bool,
) {
	if isBot || isAdmin {
		return
	}

	d.mu.RLock()
	g := d.guilds[guildID]
	d.mu.RUnlock()
	if g == nil {
		return
	}
	if _, ok := g.ignored[channelID]; ok {
		return
	}

	g.mu.Lock()
	st, ok := g.users[user.ID]
	if !ok {
		st = &userStats{count: 1, deadline: time.Now().Add(d.window)}
		st.timer = time.AfterFunc(d.window, func() { g.expire(user.ID) })
		g.users[user.ID] = st
	} else {
		st.count++
		st.deadline = time.Now().Add(d.window)
	}
	triggered := st.count >= g.setting.MessageThreshold
	if triggered {
		// Removing the entry under the lock makes this call the single winner;
		// concurrent messages for the same user see a fresh window afterwards
		delete(g.users, user.ID)
		st.timer.Stop()
	}
	g.mu.Unlock()

	if !triggered {
		return
	}

	log.Printf("🛡️ Anti-spam triggered in guild %s for user %s (%d messages)",
		guildID, user.ID, st.count)
	d.queue.Enqueue(&models.PunishQueueItem{
		ID:              core.NewID("pqi"),
		GuildID:         guildID,
		Users:           []models.GuildUser{user},
		Action:          g.setting.Action,
		Detector:        models.DetectorSpam,
		DurationMinutes: g.setting.MuteTimeMinutes,
		RoleID:          g.setting.RoleID,
		Reason:          "message flood detected",
	})
}

// expire discards one user's entry once its deadline really elapsed. The
// deadline moves forward on every message, so a fired timer re-arms itself
// for the remainder instead of expiring a refreshed entry.
func (g *guildState) expire(userID models.UserID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.users[userID]
	if !ok {
		return
	}
	if remaining := time.Until(st.deadline); remaining > 0 {
		st.timer = time.AfterFunc(remaining, func() { g.expire(userID) })
		return
	}
	delete(g.users, userID)
}

func (g *guildState) stopAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for userID, st := range g.users {
		st.timer.Stop()
		delete(g.users, userID)
	}
}
