package mocks

import (
	"context"

	"github.com/pageza/nutriplan/backend/internal/service"
	"github.com/pageza/nutriplan/backend/internal/types"
	"github.com/stretchr/testify/mock"
)

// MockPlanService is a mock implementation of service.IPlanService
type MockPlanService struct {
	mock.Mock
}

var _ service.IPlanService = (*MockPlanService)(nil)

// Generate mocks the Generate method
func (m *MockPlanService) Generate(ctx context.Context, session types.Session, req service.PlanRequest) (types.Session, *types.PlanResult, error) {
	args := m.Called(ctx, session, req)

	// The updated session may be derived from the input.
	var updated types.Session
	if fn, ok := args.Get(0).(func(context.Context, types.Session, service.PlanRequest) types.Session); ok {
		updated = fn(ctx, session, req)
	} else {
		updated = args.Get(0).(types.Session)
	}
	if args.Get(1) == nil {
		return updated, nil, args.Error(2)
	}
	return updated, args.Get(1).(*types.PlanResult), args.Error(2)
}

// MockMealService is a mock implementation of service.IMealService
type MockMealService struct {
	mock.Mock
}

var _ service.IMealService = (*MockMealService)(nil)

// Analyze mocks the Analyze method
func (m *MockMealService) Analyze(ctx context.Context, image []byte, contentType string) (*types.ImageAnalysis, error) {
	args := m.Called(ctx, image, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ImageAnalysis), args.Error(1)
}

// MockCatalog is a mock implementation of service.CatalogFilter
type MockCatalog struct {
	mock.Mock
}

var _ service.CatalogFilter = (*MockCatalog)(nil)

// Filter mocks the Filter method
func (m *MockCatalog) Filter(ctx context.Context, age int, conditions []string, goal string) ([]types.FoodRow, error) {
	args := m.Called(ctx, age, conditions, goal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.FoodRow), args.Error(1)
}
