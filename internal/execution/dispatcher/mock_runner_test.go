package dispatcher_test

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRunner is a mock type for the Runner type
type MockRunner[I, O any] struct {
	mock.Mock
}

type MockRunner_Expecter[I, O any] struct {
	mock *mock.Mock
}

func (_m *MockRunner[I, O]) EXPECT() *MockRunner_Expecter[I, O] {
	return &MockRunner_Expecter[I, O]{mock: &_m.Mock}
}

// Run provides a mock function with given fields: ctx, input
func (_m *MockRunner[I, O]) Run(ctx context.Context, input I) (O, error) {
	ret := _m.Called(ctx, input)

	var r0 O
	if rf, ok := ret.Get(0).(func(context.Context, I) O); ok {
		r0 = rf(ctx, input)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(O)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, I) error); ok {
		r1 = rf(ctx, input)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Run is a helper method to define mock.On call
//   - ctx context.Context
//   - input I
func (_e *MockRunner_Expecter[I, O]) Run(ctx interface{}, input interface{}) *mock.Call {
	return _e.mock.On("Run", ctx, input)
}

// NewMockRunner creates a new instance of MockRunner. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockRunner[I, O any](t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRunner[I, O] {
	m := &MockRunner[I, O]{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
