package mocks

import (
	"context"
	"encoding/json"

	ports "github.com/bnema/dnd-campaign-cli/internal/ports"
	mock "github.com/stretchr/testify/mock"
)

// MockCreationBackend is a mock type for the CreationBackend type
type MockCreationBackend struct {
	mock.Mock
}

type MockCreationBackend_Expecter struct {
	mock *mock.Mock
}

func (_m *MockCreationBackend) EXPECT() *MockCreationBackend_Expecter {
	return &MockCreationBackend_Expecter{mock: &_m.Mock}
}

// CreateCampaign provides a mock function with given fields: ctx, req
func (_m *MockCreationBackend) CreateCampaign(ctx context.Context, req ports.CreationRequest) (json.RawMessage, error) {
	return _m.create("CreateCampaign", ctx, req)
}

// CreateCharacter provides a mock function with given fields: ctx, req
func (_m *MockCreationBackend) CreateCharacter(ctx context.Context, req ports.CreationRequest) (json.RawMessage, error) {
	return _m.create("CreateCharacter", ctx, req)
}

func (_m *MockCreationBackend) create(method string, ctx context.Context, req ports.CreationRequest) (json.RawMessage, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for " + method)
	}

	if rf, ok := ret.Get(0).(func(context.Context, ports.CreationRequest) (json.RawMessage, error)); ok {
		return rf(ctx, req)
	}

	var body json.RawMessage
	if ret.Get(0) != nil {
		body = ret.Get(0).(json.RawMessage)
	}

	return body, ret.Error(1)
}

type MockCreationBackend_Create_Call struct {
	*mock.Call
}

func (_e *MockCreationBackend_Expecter) CreateCampaign(ctx interface{}, req interface{}) *MockCreationBackend_Create_Call {
	return &MockCreationBackend_Create_Call{Call: _e.mock.On("CreateCampaign", ctx, req)}
}

func (_e *MockCreationBackend_Expecter) CreateCharacter(ctx interface{}, req interface{}) *MockCreationBackend_Create_Call {
	return &MockCreationBackend_Create_Call{Call: _e.mock.On("CreateCharacter", ctx, req)}
}

func (_c *MockCreationBackend_Create_Call) Return(body json.RawMessage, err error) *MockCreationBackend_Create_Call {
	_c.Call.Return(body, err)
	return _c
}

func (_c *MockCreationBackend_Create_Call) RunAndReturn(run func(context.Context, ports.CreationRequest) (json.RawMessage, error)) *MockCreationBackend_Create_Call {
	_c.Call.Return(run)
	return _c
}

// NewMockCreationBackend creates a new instance of MockCreationBackend. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockCreationBackend(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockCreationBackend {
	m := &MockCreationBackend{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
