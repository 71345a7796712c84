package punishqueue

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"guardbackend/clients"
	"guardbackend/models"
	"guardbackend/services"
)

// Queue serializes all punishment write traffic against the Discord API.
// It is bounded with a drop-oldest overflow policy: under sustained overload a
// backlogged punishment for a long-departed raider is worth less than a fresh
// detection, so stale items are discarded instead of blocking detectors.
type Queue struct {
	discordClient clients.DiscordClient
	notifier      services.ProtectionNotifier
	capacity      int
	limiter       *rate.Limiter

	mu           sync.Mutex
	items        []*models.PunishQueueItem
	droppedTotal int

	notify chan struct{}
}

// NewQueue creates a bounded punishment queue. interval is the minimum spacing
// between consecutive enforcement calls.
func NewQueue(
	discordClient clients.DiscordClient,
	notifier services.ProtectionNotifier,
	capacity int,
	interval time.Duration,
) *Queue {
	return &Queue{
		discordClient: discordClient,
		notifier:      notifier,
		capacity:      capacity,
		limiter:       rate.NewLimiter(rate.Every(interval), 1),
		notify:        make(chan struct{}, 1),
	}
}

// Enqueue adds one punishment item in FIFO position. When the queue is full
// the oldest queued item is dropped; Enqueue never blocks a detector.
func (q *Queue) Enqueue(item *models.PunishQueueItem) {
	q.mu.Lock()
	if len(q.items) >= q.capacity {
		dropped := q.items[0]
		q.items = q.items[1:]
		q.droppedTotal++
		log.Printf("⚠️ Punishment queue full (capacity %d), dropped oldest item %s for guild %s",
			q.capacity, dropped.ID, dropped.GuildID)
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of queued, not-yet-applied items
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// DroppedTotal returns how many items have been discarded due to overflow
func (q *Queue) DroppedTotal() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.droppedTotal
}

// Start launches the single consumer goroutine. It runs until ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	go q.run(ctx)
}

// run dequeues strictly sequentially. An item failure is logged and dropped;
// the loop itself must survive indefinitely.
func (q *Queue) run(ctx context.Context) {
	log.Printf("✅ Punishment queue consumer started")
	for {
		item := q.pop()
		if item == nil {
			select {
			case <-ctx.Done():
				log.Printf("🛑 Punishment queue consumer stopped")
				return
			case <-q.notify:
			}
			continue
		}
		q.process(ctx, item)
	}
}

func (q *Queue) pop() *models.PunishQueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item
}

// process applies the item's punishment to each affected user, spacing out the
// calls so a 30-member raid batch never bursts into secondary rate limits
func (q *Queue) process(ctx context.Context, item *models.PunishQueueItem) {
	var punished []models.GuildUser
	for _, user := range item.Users {
		if err := q.limiter.Wait(ctx); err != nil {
			return // context cancelled during shutdown
		}

		req := clients.PunishmentRequest{
			GuildID:         string(item.GuildID),
			UserID:          string(user.ID),
			Action:          item.Action,
			DurationMinutes: item.DurationMinutes,
			RoleID:          roleIDValue(item.RoleID),
			Reason:          item.Reason,
		}
		if err := q.discordClient.ApplyPunishment(ctx, req); err != nil {
			// No retry: log and move on, the detector will not re-trigger
			log.Printf("❌ Failed to punish user %s in guild %s (%s/%s): %v",
				user.ID, item.GuildID, item.Detector, item.Action, err)
			continue
		}
		punished = append(punished, user)
	}

	if len(punished) == 0 {
		return
	}

	q.notifier.OnProtectionTriggered(models.ProtectionTrigger{
		GuildID:  item.GuildID,
		Detector: item.Detector,
		Action:   item.Action,
		Users:    punished,
		Message:  item.Reason,
	})
}

func roleIDValue(roleID *models.RoleID) string {
	if roleID == nil {
		return ""
	}
	return string(*roleID)
}
