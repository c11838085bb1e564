package sms

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Gateway defines the interface for sending SMS messages
type Gateway interface {
	// Send delivers message to a single phone number
	Send(ctx context.Context, phone, message string) error

	// GetName returns the name of the SMS gateway implementation
	GetName() string
}

// DevGateway logs messages instead of sending them
type DevGateway struct {
	logger *logrus.Logger
}

// NewDevGateway creates a gateway for local development
func NewDevGateway(logger *logrus.Logger) *DevGateway {
	return &DevGateway{logger: logger}
}

// Send logs the message
func (d *DevGateway) Send(_ context.Context, phone, message string) error {
	d.logger.WithFields(logrus.Fields{
		"phone":   phone,
		"message": message,
	}).Info("SMS (dev mode, not sent)")
	return nil
}

// GetName returns the name of this SMS gateway
func (d *DevGateway) GetName() string {
	return "Dev Gateway"
}
