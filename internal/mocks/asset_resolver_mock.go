package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"procedure-review/internal/assembler"
	"procedure-review/shared/models"
)

// MockAssetResolver is a mock type for the AssetResolver type
type MockAssetResolver struct {
	mock.Mock
}

// Resolve provides a mock function with given fields: ctx, ref, rc
func (_m *MockAssetResolver) Resolve(ctx context.Context, ref models.AssetReference, rc models.ProcedureContext) (*models.ResolvedAsset, error) {
	ret := _m.Called(ctx, ref, rc)

	var r0 *models.ResolvedAsset
	if rf, ok := ret.Get(0).(func(context.Context, models.AssetReference, models.ProcedureContext) *models.ResolvedAsset); ok {
		r0 = rf(ctx, ref, rc)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.ResolvedAsset)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, models.AssetReference, models.ProcedureContext) error); ok {
		r1 = rf(ctx, ref, rc)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockAssetResolver creates a new instance of MockAssetResolver. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockAssetResolver(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAssetResolver {
	m := &MockAssetResolver{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ assembler.AssetResolver = (*MockAssetResolver)(nil)
