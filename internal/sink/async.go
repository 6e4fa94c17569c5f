package sink

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/meshtree/internal/logger"
	tree "github.com/meshtree/pkg/models"
)

// Async decouples a slow sink from the node goroutine. Samples that arrive
// while the queue is full are dropped.
type Async struct {
	next  Sink
	queue chan tree.Sample
	log   *zap.Logger
	once  sync.Once
	done  chan struct{}
}

func NewAsync(next Sink, size int) *Async {
	if size <= 0 {
		size = 128
	}
	return &Async{
		next:  next,
		queue: make(chan tree.Sample, size),
		log:   logger.Named("sink.async"),
		done:  make(chan struct{}),
	}
}

func (a *Async) DeliverSample(s tree.Sample) {
	select {
	case a.queue <- s:
	default:
		a.log.Warn("sink queue full, dropping sample", zap.Uint16("source", s.SourceID))
	}
}

// Run drains the queue until ctx is done, then delivers what is left.
func (a *Async) Run(ctx context.Context) {
	defer a.once.Do(func() { close(a.done) })
	for {
		select {
		case s := <-a.queue:
			a.next.DeliverSample(s)
		case <-ctx.Done():
			for {
				select {
				case s := <-a.queue:
					a.next.DeliverSample(s)
				default:
					return
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (a *Async) Done() <-chan struct{} {
	return a.done
}

// CloseAfterDrain waits for Run to return and then closes c, so the
// resource behind the wrapped sink outlives the queue.
func (a *Async) CloseAfterDrain(c io.Closer) error {
	<-a.done
	return c.Close()
}
