// Package storage archives sample records per device and metric.
package storage

import (
	"errors"
	"math"

	"github.com/meshtree/internal/models"
)

var ErrNotFound = errors.New("storage: not found")

// Storage persists records and answers time-range queries. A zero start or
// end leaves that side of the range open; both bounds are inclusive.
type Storage interface {
	Persist(rec models.Record) error
	Query(deviceID, metric string, start, end int64) ([]models.Record, error)
	Latest(deviceID, metric string) (models.Record, error)
	Devices() ([]string, error)
	Close() error
}

// QueryStats summarises the values of a query.
type QueryStats struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Aggregate folds records into QueryStats.
func Aggregate(recs []models.Record) QueryStats {
	if len(recs) == 0 {
		return QueryStats{}
	}
	st := QueryStats{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, r := range recs {
		st.Count++
		st.Sum += r.Value
		st.Min = math.Min(st.Min, r.Value)
		st.Max = math.Max(st.Max, r.Value)
	}
	return st
}

// Result applies one of avg, sum, min, max or count.
func (s QueryStats) Result(op string) (float64, error) {
	if s.Count == 0 {
		return 0, nil
	}
	switch op {
	case "avg":
		return s.Sum / float64(s.Count), nil
	case "sum":
		return s.Sum, nil
	case "min":
		return s.Min, nil
	case "max":
		return s.Max, nil
	case "count":
		return float64(s.Count), nil
	}
	return 0, errors.New("unsupported operation " + op)
}

func inRange(ts, start, end int64) bool {
	return (start == 0 || ts >= start) && (end == 0 || ts <= end)
}
