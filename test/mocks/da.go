package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	coreda "github.com/rollkit/sequencer-relayer/core/da"
)

// DA is a testify mock of the coreda.DA interface.
type DA struct {
	mock.Mock
}

var _ coreda.DA = (*DA)(nil)

// NewDA creates a mock and registers a cleanup that asserts expectations.
func NewDA(t interface {
	mock.TestingT
	Cleanup(func())
}) *DA {
	m := &DA{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *DA) MaxBlobSize(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *DA) Get(ctx context.Context, ids []coreda.ID, namespace []byte) ([]coreda.Blob, error) {
	args := m.Called(ctx, ids, namespace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]coreda.Blob), args.Error(1)
}

func (m *DA) GetIDs(ctx context.Context, height uint64, namespace []byte) (*coreda.GetIDsResult, error) {
	args := m.Called(ctx, height, namespace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coreda.GetIDsResult), args.Error(1)
}

func (m *DA) Commit(ctx context.Context, blobs []coreda.Blob, namespace []byte) ([]coreda.Commitment, error) {
	args := m.Called(ctx, blobs, namespace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]coreda.Commitment), args.Error(1)
}

func (m *DA) Submit(ctx context.Context, blobs []coreda.Blob, gasPrice float64, namespaces [][]byte) ([]coreda.ID, error) {
	args := m.Called(ctx, blobs, gasPrice, namespaces)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]coreda.ID), args.Error(1)
}

func (m *DA) Head(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}
