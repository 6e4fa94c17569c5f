package storage

import (
	"sort"
	"sync"

	"github.com/meshtree/internal/models"
)

// MemoryStorage keeps records in process memory, ordered by timestamp.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]models.Record
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]models.Record)}
}

func seriesKey(deviceID, metric string) string {
	return deviceID + "|" + metric
}

func (m *MemoryStorage) Persist(rec models.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	key := seriesKey(rec.DeviceID, rec.MetricName)

	m.mu.Lock()
	defer m.mu.Unlock()
	arr := m.data[key]
	i := sort.Search(len(arr), func(i int) bool { return arr[i].Timestamp > rec.Timestamp })
	arr = append(arr, models.Record{})
	copy(arr[i+1:], arr[i:])
	arr[i] = rec
	m.data[key] = arr
	return nil
}

func (m *MemoryStorage) Query(deviceID, metric string, start, end int64) ([]models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	arr := m.data[seriesKey(deviceID, metric)]
	res := make([]models.Record, 0, len(arr))
	for _, r := range arr {
		if inRange(r.Timestamp, start, end) {
			res = append(res, r)
		}
	}
	return res, nil
}

func (m *MemoryStorage) Latest(deviceID, metric string) (models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	arr := m.data[seriesKey(deviceID, metric)]
	if len(arr) == 0 {
		return models.Record{}, ErrNotFound
	}
	return arr[len(arr)-1], nil
}

func (m *MemoryStorage) Devices() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	for _, arr := range m.data {
		if len(arr) > 0 {
			seen[arr[0].DeviceID] = true
		}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
