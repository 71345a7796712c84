package triggernotif

import (
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"

	"guardbackend/models"
)

// Notifier implements the services.ProtectionNotifier interface. Every trigger
// is logged; when a webhook is configured it is also posted to the ops channel.
type Notifier struct {
	webhookURL  string
	environment string
}

func NewNotifier(webhookURL, environment string) *Notifier {
	return &Notifier{webhookURL: webhookURL, environment: environment}
}

// OnProtectionTriggered reports one processed punishment or one detector
// configuration failure
func (n *Notifier) OnProtectionTriggered(trigger models.ProtectionTrigger) {
	if trigger.ConfigFailure {
		log.Printf("⚠️ Protection configuration failure in guild %s (%s/%s): %s",
			trigger.GuildID, trigger.Detector, trigger.Action, trigger.Message)
	} else {
		log.Printf("🛡️ Protection triggered in guild %s: %s applied %s to %d user(s)",
			trigger.GuildID, trigger.Detector, trigger.Action, len(trigger.Users))
	}

	if n.webhookURL == "" {
		return // webhook notifications disabled
	}

	// Post asynchronously so the queue consumer is never blocked on the webhook
	go n.sendWebhook(trigger)
}

func (n *Notifier) sendWebhook(trigger models.ProtectionTrigger) {
	var text string
	if trigger.ConfigFailure {
		text = fmt.Sprintf("[%s] ⚠️ %s protection failed to start in guild %s: %s",
			n.environment, trigger.Detector, trigger.GuildID, trigger.Message)
	} else {
		text = fmt.Sprintf("[%s] 🛡️ %s protection applied %s to %s in guild %s",
			n.environment, trigger.Detector, trigger.Action,
			formatUsers(trigger.Users), trigger.GuildID)
	}

	msg := &slack.WebhookMessage{Text: text}
	if err := slack.PostWebhook(n.webhookURL, msg); err != nil {
		log.Printf("⚠️ Failed to post protection trigger webhook: %v", err)
	}
}

func formatUsers(users []models.GuildUser) string {
	if len(users) == 0 {
		return "no users"
	}
	names := make([]string, 0, len(users))
	for _, user := range users {
		names = append(names, fmt.Sprintf("%s (%s)", user.Username, user.ID))
	}
	return strings.Join(names, ", ")
}
