package common

import (
	"errors"
	"time"

	"github.com/mcnijman/go-emailaddress"
)

// ErrCollectionUnavailable is returned by a data source when a collection doesn't exist at all.
var ErrCollectionUnavailable = errors.New("collection unavailable")

// AMQPSettings represents the settings that we require in order to connect to the AMQP exchange.
type AMQPSettings struct {
	URI          string
	ExchangeName string
	ExchangeType string
	QueueName    string
}

// Settings represents the store-level settings that influence how alerts are evaluated and worded.
type Settings struct {
	StoreName string
	Location  *time.Location
}

// DefaultSettings returns the settings used when the store has not configured anything.
func DefaultSettings(location *time.Location) *Settings {
	if location == nil {
		location = time.UTC
	}
	return &Settings{Location: location}
}

// ValidateEmailAddress returns an error if the format of an email address is invalid.
func ValidateEmailAddress(emailAddress string) error {
	_, err := emailaddress.Parse(emailAddress)
	return err
}
