package messaging

import (
	"fmt"

	"greengate/entity"
	"greengate/pkg/logger"
)

// Sender delivers messages over SMS or WhatsApp. Delivery is best
// effort: callers log failures but never fail the operation that
// triggered the send.
type Sender interface {
	Send(phoneNumber, message string, channel entity.MessageChannel) error
}

// ConsoleSender writes messages to stdout. It is the development and
// demo channel; production wires a real gateway behind the same
// interface.
type ConsoleSender struct {
	logger *logger.Logger
}

// NewConsoleSender creates a console-backed sender
func NewConsoleSender(logger *logger.Logger) *ConsoleSender {
	return &ConsoleSender{
		logger: logger,
	}
}

// Send prints the message to the console.
func (s *ConsoleSender) Send(phoneNumber, message string, channel entity.MessageChannel) error {
	fmt.Printf("📱 [%s] to %s: %s\n", channel, phoneNumber, message)
	s.logger.Infow("Message dispatched", "phone_number", phoneNumber, "channel", channel)
	return nil
}
