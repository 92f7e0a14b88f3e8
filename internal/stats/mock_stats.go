package stats

import (
	"github.com/stretchr/testify/mock"
)

type MockStatsProvider struct {
	mock.Mock
}

func (m *MockStatsProvider) Incr(name string) {
	m.Called(name)
}

func (m *MockStatsProvider) Decr(name string) {
	m.Called(name)
}

func (m *MockStatsProvider) Set(name string, value float64) {
	m.Called(name, value)
}

func (m *MockStatsProvider) Observe(name string, value float64) {
	m.Called(name, value)
}

// NoopStats is for tests that don't assert on metrics.
type NoopStats struct{}

func (NoopStats) Incr(string)             {}
func (NoopStats) Decr(string)             {}
func (NoopStats) Set(string, float64)     {}
func (NoopStats) Observe(string, float64) {}
