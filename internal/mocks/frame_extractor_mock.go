package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"procedure-review/internal/resolver"
)

// MockFrameExtractor is a mock type for the FrameExtractor type
type MockFrameExtractor struct {
	mock.Mock
}

// ExtractFrame provides a mock function with given fields: ctx, path, offset
func (_m *MockFrameExtractor) ExtractFrame(ctx context.Context, path string, offset float64) ([]byte, error) {
	ret := _m.Called(ctx, path, offset)

	var r0 []byte
	if rf, ok := ret.Get(0).(func(context.Context, string, float64) []byte); ok {
		r0 = rf(ctx, path, offset)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string, float64) error); ok {
		r1 = rf(ctx, path, offset)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockFrameExtractor creates a new instance of MockFrameExtractor. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockFrameExtractor(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockFrameExtractor {
	m := &MockFrameExtractor{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ resolver.FrameExtractor = (*MockFrameExtractor)(nil)
