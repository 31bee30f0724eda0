package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/streadway/amqp"
)

// Refresh is a message handler for manual refresh requests.
type Refresh struct {
	notifications Notifications
}

// NewRefresh returns a new refresh request handler.
func NewRefresh(notifications Notifications) *Refresh {
	return &Refresh{notifications: notifications}
}

// HandleMessage handles a single AMQP delivery. The message body is ignored. A request that
// arrives while a refresh is already running is satisfied by that refresh.
func (h *Refresh) HandleMessage(ctx context.Context, delivery amqp.Delivery) error {
	h.notifications.Refresh(ctx)
	return nil
}

// DismissRequest represents a deserialized request to dismiss a notification.
type DismissRequest struct {
	ID string `json:"id"`
}

// Dismiss is a message handler for requests to hide a notification until the next refresh.
type Dismiss struct {
	notifications Notifications
}

// NewDismiss returns a new dismiss request handler.
func NewDismiss(notifications Notifications) *Dismiss {
	return &Dismiss{notifications: notifications}
}

// HandleMessage handles a single AMQP delivery. Dismissing a notification that isn't on display
// is not an error, but a request that arrives before the first set of notifications has been
// loaded is requeued.
func (h *Dismiss) HandleMessage(ctx context.Context, delivery amqp.Delivery) error {

	// Parse the message body.
	var request DismissRequest
	err := json.Unmarshal(delivery.Body, &request)
	if err != nil {
		return NewUnrecoverableError("unable to parse message body: %s", err.Error())
	}

	// Validate the request.
	id := strings.TrimSpace(request.ID)
	if id == "" {
		return NewUnrecoverableError("no notification ID provided")
	}

	if !h.notifications.Dismiss(ctx, id) && !h.notifications.Loaded() {
		return NewRecoverableError("notifications not loaded yet, unable to dismiss %s", id)
	}
	return nil
}
