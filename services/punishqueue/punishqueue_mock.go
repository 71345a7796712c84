package punishqueue

import (
	"github.com/stretchr/testify/mock"

	"guardbackend/models"
)

// MockPunishmentQueue implements the services.PunishmentQueue interface for testing
type MockPunishmentQueue struct {
	mock.Mock
}

// Enqueue mocks adding a punishment item
func (m *MockPunishmentQueue) Enqueue(item *models.PunishQueueItem) {
	m.Called(item)
}

// Len mocks reading the queue depth
func (m *MockPunishmentQueue) Len() int {
	args := m.Called()
	return args.Int(0)
}
