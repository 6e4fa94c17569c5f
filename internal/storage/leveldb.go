package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/meshtree/internal/db"
	"github.com/meshtree/internal/models"
)

const (
	samplePrefix = "s|"
	devicePrefix = "d|"
)

// LevelStorage archives records in LevelDB. Sample keys sort by series then
// timestamp, so range queries are a single iterator scan.
type LevelStorage struct {
	db  *db.LevelDB
	seq atomic.Uint32
}

func NewLevelStorage(ldb *db.LevelDB) *LevelStorage {
	s := &LevelStorage{db: ldb}
	s.seq.Store(uint32(time.Now().UnixNano()))
	return s
}

// OpenLevelStorage opens the database at path.
func OpenLevelStorage(path string) (*LevelStorage, error) {
	ldb, err := db.NewLevelDB(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	return NewLevelStorage(ldb), nil
}

func seriesPrefix(deviceID, metric string) []byte {
	return []byte(samplePrefix + deviceID + "|" + metric + "|")
}

// sampleKey appends the timestamp with its sign bit flipped, so negative
// and positive values sort correctly, and a sequence number to keep
// records with the same timestamp.
func sampleKey(deviceID, metric string, ts int64, seq uint32) []byte {
	key := seriesPrefix(deviceID, metric)
	key = binary.BigEndian.AppendUint64(key, uint64(ts)^(1<<63))
	return binary.BigEndian.AppendUint32(key, seq)
}

func (s *LevelStorage) Persist(rec models.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if strings.Contains(rec.DeviceID, "|") || strings.Contains(rec.MetricName, "|") {
		return fmt.Errorf("invalid series %s/%s", rec.DeviceID, rec.MetricName)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := sampleKey(rec.DeviceID, rec.MetricName, rec.Timestamp, s.seq.Add(1))
	return s.db.WriteBatch(map[string][]byte{
		string(key):                  data,
		devicePrefix + rec.DeviceID: nil,
	})
}

func (s *LevelStorage) Query(deviceID, metric string, start, end int64) ([]models.Record, error) {
	prefix := seriesPrefix(deviceID, metric)
	from := int64(math.MinInt64)
	if start != 0 {
		from = start
	}

	iter := s.db.NewPrefixIterator(prefix)
	defer iter.Release()

	var recs []models.Record
	for ok := iter.Seek(sampleKey(deviceID, metric, from, 0)); ok; ok = iter.Next() {
		if end != 0 && keyTimestamp(iter.Key(), len(prefix)) > end {
			break
		}
		var rec models.Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, iter.Error()
}

func keyTimestamp(key []byte, prefixLen int) int64 {
	return int64(binary.BigEndian.Uint64(key[prefixLen:prefixLen+8]) ^ (1 << 63))
}

func (s *LevelStorage) Latest(deviceID, metric string) (models.Record, error) {
	iter := s.db.NewPrefixIterator(seriesPrefix(deviceID, metric))
	defer iter.Release()
	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return models.Record{}, err
		}
		return models.Record{}, ErrNotFound
	}
	var rec models.Record
	if err := json.Unmarshal(iter.Value(), &rec); err != nil {
		return models.Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

func (s *LevelStorage) Devices() ([]string, error) {
	iter := s.db.NewPrefixIterator([]byte(devicePrefix))
	defer iter.Release()
	var out []string
	for iter.Next() {
		out = append(out, strings.TrimPrefix(string(iter.Key()), devicePrefix))
	}
	sort.Strings(out)
	return out, iter.Error()
}

func (s *LevelStorage) Close() error {
	return s.db.Close()
}
