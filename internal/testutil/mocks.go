package testutil

import (
	"sync"
	"time"

	"stw/internal/models"
	"stw/internal/providers"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// MockStore implements storage/interfaces.StoreInterface in memory.
type MockStore struct {
	mu       sync.Mutex
	Data     map[string][]byte
	FailSet  bool
	FailGet  bool
	ProbeErr error
}

func NewMockStore() *MockStore {
	return &MockStore{Data: make(map[string][]byte)}
}

func (m *MockStore) Init() error { return nil }

func (m *MockStore) GetItem(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGet {
		return nil, false, errFailing
	}
	v, ok := m.Data[key]
	return v, ok, nil
}

func (m *MockStore) SetItem(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSet {
		return errFailing
	}
	m.Data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MockStore) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Data, key)
	return nil
}

func (m *MockStore) Usage() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, v := range m.Data {
		total += int64(len(v))
	}
	return total, nil
}

func (m *MockStore) Probe() error { return m.ProbeErr }
func (m *MockStore) Close()       {}

type mockErr string

func (e mockErr) Error() string { return string(e) }

const errFailing = mockErr("store failing")

// MockNotifier implements notify.NotifierInterface and records calls.
type MockNotifier struct {
	mu        sync.Mutex
	Completed []*models.Ticket
	Deleted   []*models.Ticket
	Expiring  [][]*models.Ticket
}

func (m *MockNotifier) TicketCompleted(t *models.Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Completed = append(m.Completed, t)
}

func (m *MockNotifier) TicketDeleted(t *models.Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, t)
}

func (m *MockNotifier) ExpiringSoon(tickets []*models.Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Expiring = append(m.Expiring, tickets)
}

// MockMetrics implements providers.MetricsProviderInterface and counts calls.
type MockMetrics struct {
	mu            sync.Mutex
	Requests      int
	CacheHits     int
	CacheMisses   int
	Persistence   int
	Backups       map[string]int
	Notifications map[string]int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Backups:       make(map[string]int),
		Notifications: make(map[string]int),
	}
}

func (m *MockMetrics) IncRequestsTotal(_ string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests++
}
func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}
func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}
func (m *MockMetrics) ObservePersistenceDuration(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Persistence++
}
func (m *MockMetrics) IncBackupsTotal(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Backups[status]++
}
func (m *MockMetrics) IncNotificationsTotal(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications[kind]++
}
