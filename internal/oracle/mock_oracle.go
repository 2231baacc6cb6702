package oracle

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockOracle is a mock implementation of Oracle using testify/mock.
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) SuggestCuts(ctx context.Context, req Request) (Response, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(Response), args.Error(1)
}
