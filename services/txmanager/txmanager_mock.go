package txmanager

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockTransactionManager implements the services.TransactionManager interface for testing
type MockTransactionManager struct {
	mock.Mock
}

// WithTransaction mocks transactional execution by invoking the function directly
func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}
