package service_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/repository"
)

// MockJoinRequestRepo
type MockJoinRequestRepo struct {
	mock.Mock
}

func (m *MockJoinRequestRepo) Create(ctx context.Context, req *domain.JoinRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}
func (m *MockJoinRequestRepo) GetByID(ctx context.Context, id string) (*domain.JoinRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.JoinRequest), args.Error(1)
}
func (m *MockJoinRequestRepo) ListPending(ctx context.Context, fishtankID string) ([]domain.JoinRequest, error) {
	args := m.Called(ctx, fishtankID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.JoinRequest), args.Error(1)
}
func (m *MockJoinRequestRepo) WatchPending(ctx context.Context, fishtankID string) (<-chan repository.PendingSnapshot, error) {
	args := m.Called(ctx, fishtankID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan repository.PendingSnapshot), args.Error(1)
}
func (m *MockJoinRequestRepo) Resolve(ctx context.Context, p repository.ResolveParams) (*domain.Resolution, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Resolution), args.Error(1)
}
func (m *MockJoinRequestRepo) CompleteResolution(ctx context.Context, res *domain.Resolution) error {
	args := m.Called(ctx, res)
	return args.Error(0)
}

// MockNotifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyDecision(ctx context.Context, notice *domain.DecisionNotice) error {
	args := m.Called(ctx, notice)
	return args.Error(0)
}
