// Package messaging handles outbound WhatsApp delivery for proactive sends
// such as appointment reminders. Inbound webhook replies travel back in the
// HTTP response and do not pass through this package.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
)

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// MinPhoneNumberDigits is the minimum digit count accepted for a recipient.
const MinPhoneNumberDigits = 6

// Service is the outbound messaging contract.
type Service interface {
	// SendMessage delivers a WhatsApp message to the canonicalized recipient.
	SendMessage(ctx context.Context, to string, body string) error
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number. It removes all non-numeric characters and validates the
// result has at least MinPhoneNumberDigits digits.
func ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < MinPhoneNumberDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, MinPhoneNumberDigits)
	}

	if recipient != canonical {
		slog.Debug("messaging canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// MockService records sends for testing. Safe for concurrent use since
// reminder sends happen on timer goroutines.
type MockService struct {
	SendErr bool

	mu   sync.Mutex
	sent []SentMessage
}

// SentMessage is one recorded outbound message.
type SentMessage struct {
	To   string
	Body string
}

// NewMockService creates an empty mock messaging service.
func NewMockService() *MockService {
	return &MockService{sent: []SentMessage{}}
}

// SendMessage records the message, or fails if SendErr is set.
func (m *MockService) SendMessage(ctx context.Context, to string, body string) error {
	if m.SendErr {
		return fmt.Errorf("mock send failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{To: to, Body: body})
	return nil
}

// Sent returns a snapshot of the recorded messages.
func (m *MockService) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}
