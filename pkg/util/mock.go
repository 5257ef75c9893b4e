package util

import (
	"sync"

	"github.com/influxdata/influxdb-client-go/api/write"
)

// MockWriteAPI satisfies api.WriteAPI without a database. It keeps every
// point so tests can inspect what would have been written.
type MockWriteAPI struct {
	mu      sync.Mutex
	records []string
	points  []*write.Point
}

func (m *MockWriteAPI) WriteRecord(line string) {
	m.mu.Lock()
	m.records = append(m.records, line)
	m.mu.Unlock()
}

func (m *MockWriteAPI) WritePoint(point *write.Point) {
	m.mu.Lock()
	m.points = append(m.points, point)
	m.mu.Unlock()
}

func (m *MockWriteAPI) Flush() {}

func (m *MockWriteAPI) Close() {}

// Errors never yields anything; nothing can fail.
func (m *MockWriteAPI) Errors() <-chan error { return nil }

func (m *MockWriteAPI) Points() []*write.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*write.Point(nil), m.points...)
}

func (m *MockWriteAPI) Records() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.records...)
}
