// Written by hand in the shape MockGen produces.
// Source: internal/transport/channel.go

package transport

import (
	context "context"
	reflect "reflect"
	time "time"

	gomock "github.com/golang/mock/gomock"
)

// MockChannel is a mock of the Channel interface, used by the
// internal/sender tests to inject a mid-transfer closure without a real
// socket.
type MockChannel struct {
	ctrl     *gomock.Controller
	recorder *MockChannelMockRecorder
}

// MockChannelMockRecorder is the mock recorder for MockChannel.
type MockChannelMockRecorder struct {
	mock *MockChannel
}

// NewMockChannel creates a new mock instance.
func NewMockChannel(ctrl *gomock.Controller) *MockChannel {
	mock := &MockChannel{ctrl: ctrl}
	mock.recorder = &MockChannelMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockChannel) EXPECT() *MockChannelMockRecorder {
	return m.recorder
}

// SendAll mocks base method.
func (m *MockChannel) SendAll(ctx context.Context, b []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SendAll", ctx, b)
	ret0, _ := ret[0].(error)
	return ret0
}

// SendAll indicates an expected call of SendAll.
func (mr *MockChannelMockRecorder) SendAll(ctx, b interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SendAll", reflect.TypeOf((*MockChannel)(nil).SendAll), ctx, b)
}

// Recv mocks base method.
func (m *MockChannel) Recv(ctx context.Context, maxBytes int) ([]byte, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Recv", ctx, maxBytes)
	ret0, _ := ret[0].([]byte)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Recv indicates an expected call of Recv.
func (mr *MockChannelMockRecorder) Recv(ctx, maxBytes interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Recv", reflect.TypeOf((*MockChannel)(nil).Recv), ctx, maxBytes)
}

// PollReadable mocks base method.
func (m *MockChannel) PollReadable(d time.Duration) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "PollReadable", d)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// PollReadable indicates an expected call of PollReadable.
func (mr *MockChannelMockRecorder) PollReadable(d interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PollReadable", reflect.TypeOf((*MockChannel)(nil).PollReadable), d)
}

// Close mocks base method.
func (m *MockChannel) Close() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Close")
	ret0, _ := ret[0].(error)
	return ret0
}

// Close indicates an expected call of Close.
func (mr *MockChannelMockRecorder) Close() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*MockChannel)(nil).Close))
}
