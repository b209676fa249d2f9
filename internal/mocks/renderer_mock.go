package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"procedure-review/internal/render"
	"procedure-review/shared/models"
)

// MockRenderer is a mock type for the Renderer type
type MockRenderer struct {
	mock.Mock
}

// Render provides a mock function with given fields: ctx, p, format
func (_m *MockRenderer) Render(ctx context.Context, p *models.ReviewPayload, format models.Format) ([]byte, error) {
	ret := _m.Called(ctx, p, format)

	var r0 []byte
	if rf, ok := ret.Get(0).(func(context.Context, *models.ReviewPayload, models.Format) []byte); ok {
		r0 = rf(ctx, p, format)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, *models.ReviewPayload, models.Format) error); ok {
		r1 = rf(ctx, p, format)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockRenderer creates a new instance of MockRenderer. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockRenderer(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRenderer {
	m := &MockRenderer{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ render.Renderer = (*MockRenderer)(nil)
