package session

import (
	"context"
	"fmt"
)

// MockRepository implements Repository for testing.
// All methods panic if the corresponding function is not set,
// ensuring tests explicitly configure the behavior they expect.
type MockRepository struct {
	LoadVariablesFunc   func(ctx context.Context, sessionID, scope string) (map[string]any, error)
	SaveVariablesFunc   func(ctx context.Context, sessionID string, vars map[string]any) error
	DeleteVariablesFunc func(ctx context.Context, sessionID string) error
}

func (m *MockRepository) LoadVariables(ctx context.Context, sessionID, scope string) (map[string]any, error) {
	if m.LoadVariablesFunc == nil {
		panic(fmt.Sprintf("MockRepository.LoadVariables called but LoadVariablesFunc not set (sessionID: %s)", sessionID))
	}
	return m.LoadVariablesFunc(ctx, sessionID, scope)
}

func (m *MockRepository) SaveVariables(ctx context.Context, sessionID string, vars map[string]any) error {
	if m.SaveVariablesFunc == nil {
		panic(fmt.Sprintf("MockRepository.SaveVariables called but SaveVariablesFunc not set (sessionID: %s)", sessionID))
	}
	return m.SaveVariablesFunc(ctx, sessionID, vars)
}

func (m *MockRepository) DeleteVariables(ctx context.Context, sessionID string) error {
	if m.DeleteVariablesFunc == nil {
		panic(fmt.Sprintf("MockRepository.DeleteVariables called but DeleteVariablesFunc not set (sessionID: %s)", sessionID))
	}
	return m.DeleteVariablesFunc(ctx, sessionID)
}
