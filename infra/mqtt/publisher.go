package mqtt

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/responder/core/model"
	coremqtt "github.com/kilianp07/responder/core/mqtt"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// MockPublisher records declarations instead of sending them. It backs the
// offline CLI commands and tests.
type MockPublisher struct {
	Declarations []model.EventDeclaration
	FailIDs      map[string]bool
	mu           sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{FailIDs: make(map[string]bool)}
}

// PublishEvent records the declaration or returns an error if configured to fail.
func (m *MockPublisher) PublishEvent(_ context.Context, decl model.EventDeclaration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[decl.EventID] {
		return fmt.Errorf("publish failed")
	}
	m.Declarations = append(m.Declarations, decl)
	return nil
}

// Sent returns a copy of the recorded declarations.
func (m *MockPublisher) Sent() []model.EventDeclaration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.EventDeclaration(nil), m.Declarations...)
}
