package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"procedure-review/internal/pipeline"
	"procedure-review/shared/models"
)

// MockNotifier is a mock type for the Notifier type
type MockNotifier struct {
	mock.Mock
}

// Notify provides a mock function with given fields: ctx, n
func (_m *MockNotifier) Notify(ctx context.Context, n models.RunNotification) error {
	ret := _m.Called(ctx, n)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, models.RunNotification) error); ok {
		r0 = rf(ctx, n)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockNotifier creates a new instance of MockNotifier. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockNotifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ pipeline.Notifier = (*MockNotifier)(nil)

// MockRecorder is a mock type for the Recorder type
type MockRecorder struct {
	mock.Mock
}

// Record provides a mock function with given fields: ctx, n
func (_m *MockRecorder) Record(ctx context.Context, n models.RunNotification) error {
	ret := _m.Called(ctx, n)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, models.RunNotification) error); ok {
		r0 = rf(ctx, n)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockRecorder creates a new instance of MockRecorder. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockRecorder(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRecorder {
	m := &MockRecorder{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ pipeline.Recorder = (*MockRecorder)(nil)
