// Package testutils provides shared mocks for the external collaborators
// consumed by the boost, pool, and saver subsystems.
package testutils

import (
	"github.com/stretchr/testify/mock"

	"github.com/perfmgr/boostd/internal/boost"
	"github.com/perfmgr/boostd/internal/pool"
	"github.com/perfmgr/boostd/internal/saver"
)

type MockGovernor struct {
	mock.Mock
}

var _ boost.Governor = (*MockGovernor)(nil)

func (m *MockGovernor) Floor() uint64 {
	return m.Called().Get(0).(uint64)
}

func (m *MockGovernor) MaxFreq() uint64 {
	return m.Called().Get(0).(uint64)
}

func (m *MockGovernor) SetMinFreq(hz uint64) {
	m.Called(hz)
}

func (m *MockGovernor) Recompute() {
	m.Called()
}

func (m *MockGovernor) MarkBoostDevice() {
	m.Called()
}

type MockAllocator struct {
	mock.Mock
}

var _ pool.Allocator = (*MockAllocator)(nil)

func (m *MockAllocator) Allocate(order uint, flags pool.AllocFlags) (*pool.Block, error) {
	args := m.Called(order, flags)
	blk := args.Get(0)
	if blk == nil {
		return nil, args.Error(1)
	}
	return blk.(*pool.Block), args.Error(1)
}

func (m *MockAllocator) Release(blk *pool.Block, order uint) {
	m.Called(blk, order)
}

type MockCPUPolicy struct {
	mock.Mock
}

var _ saver.CPUPolicy = (*MockCPUPolicy)(nil)

func (m *MockCPUPolicy) HWBounds(cluster saver.CPUCluster) (uint64, uint64) {
	args := m.Called(cluster)
	return args.Get(0).(uint64), args.Get(1).(uint64)
}

func (m *MockCPUPolicy) SetLimits(cluster saver.CPUCluster, minHz, maxHz uint64) {
	m.Called(cluster, minHz, maxHz)
}

type MockVMPolicy struct {
	mock.Mock
}

var _ saver.VMPolicy = (*MockVMPolicy)(nil)

func (m *MockVMPolicy) Apply(s saver.WritebackSettings) {
	m.Called(s)
}

type MockScreenListener struct {
	mock.Mock
}

func (m *MockScreenListener) SetScreenState(on bool) {
	m.Called(on)
}
