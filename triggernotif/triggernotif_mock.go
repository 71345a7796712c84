package triggernotif

import (
	"github.com/stretchr/testify/mock"

	"guardbackend/models"
)

// MockProtectionNotifier implements the services.ProtectionNotifier interface for testing
type MockProtectionNotifier struct {
	mock.Mock
}

// OnProtectionTriggered mocks the trigger notification
func (m *MockProtectionNotifier) OnProtectionTriggered(trigger models.ProtectionTrigger) {
	m.Called(trigger)
}
