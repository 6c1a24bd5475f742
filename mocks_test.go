package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

func testConfig() *EnvConfig {
	return &EnvConfig{
		SigningKey:         "test-signing-key",
		SessionDuration:    72,
		Issuer:             "accounts-test",
		Audience:           []string{"web"},
		RequireActivation:  true,
		ActivationTokenTTL: 72 * time.Hour,
		DefaultLocale:      "en_US",
		MailFrom:           "noreply@example.com",
		BaseURL:            "https://example.com",
		SessionCookieName:  "session",
		LocaleCookieName:   "locale",
		FlashCookieName:    "flash",
	}
}

// MockMailer records outbound mail for assertions.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, from, to string, msg []byte) error {
	args := m.Called(ctx, from, to, msg)
	return args.Error(0)
}

// capturingSink collects the auth events a workflow emits.
type capturingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *capturingSink) Record(_ context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *capturingSink) types() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventType, 0, len(s.events))
	for _, evt := range s.events {
		out = append(out, evt.Type)
	}
	return out
}
