package network

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/meshtree/pkg/models"
)

var (
	ErrUnknownNeighbor = errors.New("network: unknown neighbor")
	ErrQueueFull       = errors.New("network: send queue full")
)

const (
	sendQueueSize = 64
	sendTimeout   = 2 * time.Second
)

// Neighbor is a node in radio range. RSSI is the signal strength reported
// for frames received from it.
type Neighbor struct {
	Address  models.Address
	Endpoint string
	RSSI     int
}

// FrameHandler receives frames addressed to this node or broadcast.
type FrameHandler func(src, dst models.Address, payload []byte, rssi int)

type peer struct {
	Neighbor
	out chan []byte
}

// Link emulates a shared radio over TCP: a static neighbor table defines who
// is in range, and a broadcast is a copy to every neighbor.
type Link struct {
	self   models.Address
	client *Client
	server *Server
	log    *zap.Logger

	mu        sync.RWMutex
	neighbors map[models.Address]*peer
	order     []models.Address
	handler   FrameHandler
	running   bool

	wg   sync.WaitGroup
	stop chan struct{}
}

func NewLink(self models.Address, listen string, neighbors []Neighbor, log *zap.Logger) *Link {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Link{
		self:      self,
		client:    NewClient(sendTimeout),
		log:       log,
		neighbors: make(map[models.Address]*peer),
		stop:      make(chan struct{}),
	}
	l.server = NewServer(listen, l, log)
	for _, n := range neighbors {
		l.AddNeighbor(n)
	}
	return l
}

// AddNeighbor registers or updates a neighbor.
func (l *Link) AddNeighbor(n Neighbor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.neighbors[n.Address]; ok {
		p.Neighbor = n
		return
	}
	p := &peer{Neighbor: n, out: make(chan []byte, sendQueueSize)}
	l.neighbors[n.Address] = p
	l.order = append(l.order, n.Address)
	if l.running {
		l.startWriter(p)
	}
}

// Start listens for frames and begins draining the send queues.
func (l *Link) Start(h FrameHandler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = h
	if err := l.server.Start(); err != nil {
		return err
	}
	l.running = true
	for _, a := range l.order {
		l.startWriter(l.neighbors[a])
	}
	return nil
}

func (l *Link) Stop() error {
	close(l.stop)
	err := l.server.Stop()
	l.wg.Wait()
	l.client.Close()
	return err
}

// Addr is the bound listen address.
func (l *Link) Addr() net.Addr {
	return l.server.Addr()
}

func (l *Link) startWriter(p *peer) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			select {
			case <-l.stop:
				return
			case data := <-p.out:
				l.mu.RLock()
				addr, endpoint := p.Address, p.Endpoint
				l.mu.RUnlock()
				if err := l.client.Send(endpoint, data); err != nil {
					l.log.Debug("frame lost", zap.Stringer("neighbor", addr), zap.Error(err))
				}
			}
		}
	}()
}

// Transmit queues payload for dst, or for every neighbor when dst is null.
// Delivery is best effort.
func (l *Link) Transmit(dst models.Address, payload []byte) error {
	frame := EncodeFrame(l.self, dst, payload)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if !dst.IsNull() {
		p, ok := l.neighbors[dst]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNeighbor, dst)
		}
		return enqueue(p, frame)
	}

	var errs []error
	for _, a := range l.order {
		if err := enqueue(l.neighbors[a], frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func enqueue(p *peer, frame []byte) error {
	select {
	case p.out <- frame:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, p.Address)
	}
}

// HandleMessage accepts one inbound link frame.
func (l *Link) HandleMessage(data []byte, _ net.Conn) error {
	src, dst, payload, err := DecodeFrame(data)
	if err != nil {
		return err
	}
	if !dst.IsNull() && dst != l.self {
		return nil
	}

	l.mu.RLock()
	p, ok := l.neighbors[src]
	var rssi int
	if ok {
		rssi = p.RSSI
	}
	h := l.handler
	l.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: frame from %s", ErrUnknownNeighbor, src)
	}
	if h != nil {
		h(src, dst, payload, rssi)
	}
	return nil
}
