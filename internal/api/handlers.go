// Package api serves the read-only HTTP view of a node and its sample
// archive.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/meshtree/internal/logger"
	"github.com/meshtree/internal/models"
	"github.com/meshtree/internal/storage"
	"github.com/meshtree/internal/websocket"
	tree "github.com/meshtree/pkg/models"
)

const requestTimeout = 2 * time.Second

// NodeView is the part of a running node the API exposes.
type NodeView interface {
	Snapshot(ctx context.Context) (tree.Snapshot, error)
	Notify(ctx context.Context, value int32) error
}

// Handler contains the HTTP handlers. Any dependency may be nil, in which
// case its endpoints answer 503.
type Handler struct {
	Node  NodeView
	Store storage.Storage
	Hub   *websocket.Hub
	log   *zap.Logger
}

func NewHandler(node NodeView, store storage.Storage, hub *websocket.Hub) *Handler {
	return &Handler{Node: node, Store: store, Hub: hub, log: logger.Named("api")}
}

// QueryResult answers an aggregate query over one series.
type QueryResult struct {
	DeviceID   string  `json:"device_id"`
	MetricName string  `json:"metric_name"`
	Operation  string  `json:"operation"`
	Result     float64 `json:"result"`
	Count      int     `json:"count"`
	Duration   int64   `json:"duration_ns"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// GetNode returns the node's topology snapshot.
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetChildren returns the node's child set in join order.
func (h *Handler) GetChildren(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	children := snap.Children
	if children == nil {
		children = []tree.ChildInfo{}
	}
	writeJSON(w, http.StatusOK, children)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (tree.Snapshot, bool) {
	if h.Node == nil {
		writeError(w, http.StatusServiceUnavailable, "no node attached")
		return tree.Snapshot{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	snap, err := h.Node.Snapshot(ctx)
	if err != nil {
		h.log.Error("snapshot failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return tree.Snapshot{}, false
	}
	return snap, true
}

// Notify emits an unsolicited event notification from this node.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	if h.Node == nil {
		writeError(w, http.StatusServiceUnavailable, "no node attached")
		return
	}
	var body struct {
		Value int32 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := h.Node.Notify(ctx, body.Value); err != nil {
		h.log.Error("notify failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"value": body.Value})
}

type seriesQuery struct {
	device, metric string
	start, end     int64
}

// parseSeries reads device (or source), metric, start and end parameters.
func parseSeries(r *http.Request) (seriesQuery, error) {
	q := r.URL.Query()
	sq := seriesQuery{device: q.Get("device"), metric: q.Get("metric")}
	if src := q.Get("source"); src != "" {
		id, err := strconv.ParseUint(src, 10, 16)
		if err != nil {
			return sq, errors.New("invalid source")
		}
		sq.device = models.DeviceID(uint16(id))
	}
	if sq.device == "" {
		return sq, errors.New("missing device or source")
	}
	if sq.metric == "" {
		sq.metric = models.MetricTemperature
	}
	var err error
	if sq.start, err = parseInt(q.Get("start")); err != nil {
		return sq, errors.New("invalid start")
	}
	if sq.end, err = parseInt(q.Get("end")); err != nil {
		return sq, errors.New("invalid end")
	}
	return sq, nil
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// GetSamples returns archived records of one series.
func (h *Handler) GetSamples(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "no archive configured")
		return
	}
	sq, err := parseSeries(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.Store.Query(sq.device, sq.metric, sq.start, sq.end)
	if err != nil {
		h.log.Error("query failed", zap.String("device_id", sq.device), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if recs == nil {
		recs = []models.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// GetStats aggregates one series with op (avg, sum, min, max, count).
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "no archive configured")
		return
	}
	start := time.Now()
	sq, err := parseSeries(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	op := r.URL.Query().Get("op")
	if op == "" {
		op = "avg"
	}
	recs, err := h.Store.Query(sq.device, sq.metric, sq.start, sq.end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	stats := storage.Aggregate(recs)
	res, err := stats.Result(op)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, QueryResult{
		DeviceID:   sq.device,
		MetricName: sq.metric,
		Operation:  op,
		Result:     res,
		Count:      stats.Count,
		Duration:   time.Since(start).Nanoseconds(),
	})
}

// GetDevices lists devices with archived records.
func (h *Handler) GetDevices(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "no archive configured")
		return
	}
	devs, err := h.Store.Devices()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if devs == nil {
		devs = []string{}
	}
	writeJSON(w, http.StatusOK, devs)
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		http.Error(w, "WebSocket not available", http.StatusServiceUnavailable)
		return
	}
	h.Hub.ServeWS(w, r)
}

func (h *Handler) WSStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"connected_clients": 0,
		"timestamp":         time.Now().Unix(),
		"status":            "unavailable",
	}
	if h.Hub != nil {
		stats["connected_clients"] = h.Hub.GetClientCount()
		stats["status"] = "active"
	}
	writeJSON(w, http.StatusOK, stats)
}
