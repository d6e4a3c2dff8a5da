package services

import (
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go/v7"

	"waitroom/config"
)

// Notifier pushes realtime updates to per-user PubNub channels. A nil
// Notifier is valid and silently drops everything, so deployments without
// PubNub keys (and unit tests) work unchanged.
type Notifier struct {
	pn *pubnub.PubNub
}

func NewNotifier(cfg *config.Config) *Notifier {
	if cfg.PubNubPublishKey == "" || cfg.PubNubSubscribeKey == "" {
		return nil
	}

	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PubNubUserID))
	pnCfg.PublishKey = cfg.PubNubPublishKey
	pnCfg.SubscribeKey = cfg.PubNubSubscribeKey

	return &Notifier{pn: pubnub.NewPubNub(pnCfg)}
}

func (n *Notifier) publish(userID string, message map[string]any) {
	if n == nil || n.pn == nil {
		return
	}

	_, _, err := n.pn.Publish().
		Channel("user-" + userID).
		Message(message).
		Execute()
	if err != nil {
		slog.Warn("pubnub publish failed", "user_id", userID, "error", err)
	}
}

func (n *Notifier) NotifyAdmitted(eventID, userID string, activeTTLSeconds int) {
	n.publish(userID, map[string]any{
		"type":        "admitted",
		"event_id":    eventID,
		"ttl_seconds": activeTTLSeconds,
		"message":     "It's your turn! You can reserve tickets now.",
	})
}

func (n *Notifier) NotifyPosition(eventID, userID string, position int64) {
	message := fmt.Sprintf("You are #%d in line", position+1)
	if position == 0 {
		message = "You're next!"
	} else if position < 5 {
		message = fmt.Sprintf("Almost there! You're #%d", position+1)
	}

	n.publish(userID, map[string]any{
		"type":     "queue_position",
		"event_id": eventID,
		"position": position,
		"message":  message,
	})
}

func (n *Notifier) NotifyPayment(eventID, userID, paymentStatus string) {
	n.publish(userID, map[string]any{
		"type":     "payment_result",
		"event_id": eventID,
		"status":   paymentStatus,
	})
}

// shouldNotifyPosition throttles queue-position pushes: every tick for the
// head of the line, progressively sparser further back.
func shouldNotifyPosition(position int64) bool {
	switch {
	case position < 5:
		return true
	case position < 20:
		return position%2 == 0
	case position < 100:
		return position%10 == 0
	default:
		return position%50 == 0
	}
}
