package handlerset

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/cyverse-de/messaging/v9"
	"github.com/pdv-retail/business-alerts/common"
	"github.com/pdv-retail/business-alerts/handlers"
	"github.com/pdv-retail/business-alerts/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// SummaryRoutingKey is the routing key used to publish notification summaries.
const SummaryRoutingKey = "events.business-alerts.summary"

// SummaryMessage is the message published whenever the set of notifications on display changes.
type SummaryMessage struct {
	Timestamp     string                `json:"timestamp"`
	CycleID       string                `json:"cycle_id"`
	StoreName     string                `json:"store_name,omitempty"`
	Counts        model.Counts          `json:"counts"`
	Notifications []*model.Notification `json:"notifications"`
	Unavailable   []model.Category      `json:"unavailable,omitempty"`
}

// NewSummaryMessage builds the summary message for a snapshot.
func NewSummaryMessage(snapshot *model.Snapshot) *SummaryMessage {
	return &SummaryMessage{
		Timestamp:     common.FormatTimestamp(snapshot.GeneratedAt),
		CycleID:       snapshot.CycleID,
		StoreName:     snapshot.StoreName,
		Counts:        snapshot.Counts,
		Notifications: snapshot.Notifications,
		Unavailable:   snapshot.Unavailable,
	}
}

// amqpClient is the part of messaging.Client used by the handler set.
type amqpClient interface {
	AddConsumerMulti(exchange, exchangeType, queue string, keys []string, handler messaging.MessageHandler, prefetchCount int)
	Listen()
	PublishContext(ctx context.Context, key string, body []byte) error
	Close()
}

// HandlerSet represents a set of AMQP message handlers along with the client used to publish
// notification summaries.
type HandlerSet struct {
	amqpClient   amqpClient
	amqpSettings *common.AMQPSettings
	handlerFor   map[string]handlers.MessageHandler
	log          *logrus.Entry
}

// New creates a new handler set.
func New(
	amqpSettings *common.AMQPSettings,
	handlerFor map[string]handlers.MessageHandler,
	log *logrus.Entry,
) (*HandlerSet, error) {
	wrapMsg := "unable to create the message handler set"

	// Create the AMQP client.
	client, err := messaging.NewClient(amqpSettings.URI, true)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Prepare the client for publishing.
	err = client.SetupPublishing(amqpSettings.ExchangeName)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Build and return the handler set.
	handlerSet := HandlerSet{
		amqpClient:   client,
		amqpSettings: amqpSettings,
		handlerFor:   handlerFor,
		log:          log,
	}
	return &handlerSet, nil
}

// Listen starts the client's message loop in the background and then binds every routing key in
// the handler set to the service queue. The message loop has to be running before consumers can
// be added, because the client hands new consumers to that loop.
func (hs *HandlerSet) Listen() {
	keys := make([]string, 0, len(hs.handlerFor))
	for key := range hs.handlerFor {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	go hs.amqpClient.Listen()

	hs.amqpClient.AddConsumerMulti(
		hs.amqpSettings.ExchangeName,
		hs.amqpSettings.ExchangeType,
		hs.amqpSettings.QueueName,
		keys,
		hs.HandleDelivery,
		1,
	)
	hs.log.WithField("routing_keys", keys).Info("listening for commands")
}

// HandleDelivery dispatches a delivery to the handler for its routing key. Successfully handled
// deliveries are acknowledged, deliveries that failed with a recoverable error are requeued and
// everything else is rejected.
func (hs *HandlerSet) HandleDelivery(ctx context.Context, delivery amqp.Delivery) {
	log := hs.log.WithField("routing_key", delivery.RoutingKey)

	handler, ok := hs.handlerFor[delivery.RoutingKey]
	if !ok {
		log.Warn("no handler registered for routing key, rejecting delivery")
		if err := delivery.Reject(false); err != nil {
			log.WithError(err).Error("unable to reject the delivery")
		}
		return
	}

	err := handler.HandleMessage(ctx, delivery)
	switch {
	case err == nil:
		if err = delivery.Ack(false); err != nil {
			log.WithError(err).Error("unable to acknowledge the delivery")
		}
	case handlers.IsRecoverable(err):
		log.WithError(err).Warn("recoverable error while handling the delivery, requeueing")
		if err = delivery.Nack(false, true); err != nil {
			log.WithError(err).Error("unable to requeue the delivery")
		}
	default:
		log.WithError(err).Error("unable to handle the delivery, rejecting")
		if err = delivery.Reject(false); err != nil {
			log.WithError(err).Error("unable to reject the delivery")
		}
	}
}

// PublishSnapshot publishes a summary of the given snapshot.
func (hs *HandlerSet) PublishSnapshot(ctx context.Context, snapshot *model.Snapshot) error {
	wrapMsg := "unable to publish the notification summary"

	body, err := json.Marshal(NewSummaryMessage(snapshot))
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	err = hs.amqpClient.PublishContext(ctx, SummaryRoutingKey, body)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}

// Close closes a message handler set.
func (hs *HandlerSet) Close() {
	if hs.amqpClient != nil {
		hs.amqpClient.Close()
	}
}
