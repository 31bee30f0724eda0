package handlers

import (
	"context"

	"github.com/streadway/amqp"
)

// Routing keys for the commands accepted by the service.
const (
	RefreshRoutingKey = "events.business-alerts.refresh"
	DismissRoutingKey = "events.business-alerts.dismiss"
)

// MessageHandler describes the interface used to handle AMQP messages.
type MessageHandler interface {
	HandleMessage(ctx context.Context, delivery amqp.Delivery) error
}

// Notifications is the subset of the alerts refresher that the command handlers need.
type Notifications interface {
	Refresh(ctx context.Context) bool
	Dismiss(ctx context.Context, id string) bool
	Loaded() bool
}

// InitMessageHandlers returns a map from routing key to message handler.
func InitMessageHandlers(notifications Notifications) map[string]MessageHandler {
	return map[string]MessageHandler{
		RefreshRoutingKey: NewRefresh(notifications),
		DismissRoutingKey: NewDismiss(notifications),
	}
}
