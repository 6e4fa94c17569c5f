// Package gateway bridges a border router's line-oriented console, over a
// serial port or TCP, onto MQTT.
package gateway

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/meshtree/internal/logger"
	"github.com/meshtree/internal/metrics"
	tree "github.com/meshtree/pkg/models"
)

// ErrNotSample marks console lines that carry no sample.
var ErrNotSample = errors.New("gateway: not a sample line")

// ParseLine accepts "SAMPLE <kind> <source> <value> <clock>" or the short
// "<source>,<value>" form.
func ParseLine(line string) (tree.Sample, error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "SAMPLE ") {
		f := strings.Fields(line)
		if len(f) != 5 {
			return tree.Sample{}, fmt.Errorf("%w: want 5 fields, got %d", ErrNotSample, len(f))
		}
		kind := tree.SampleKind(f[1])
		if kind != tree.SampleReport && kind != tree.SampleNotify {
			return tree.Sample{}, fmt.Errorf("%w: unknown kind %q", ErrNotSample, f[1])
		}
		src, err := strconv.ParseUint(f[2], 10, 16)
		if err != nil {
			return tree.Sample{}, fmt.Errorf("%w: source: %v", ErrNotSample, err)
		}
		val, err := strconv.ParseInt(f[3], 10, 32)
		if err != nil {
			return tree.Sample{}, fmt.Errorf("%w: value: %v", ErrNotSample, err)
		}
		clock, err := strconv.ParseInt(f[4], 10, 64)
		if err != nil {
			return tree.Sample{}, fmt.Errorf("%w: clock: %v", ErrNotSample, err)
		}
		return tree.Sample{Kind: kind, SourceID: uint16(src), Value: int32(val), Clock: clock}, nil
	}

	if src, val, ok := strings.Cut(line, ","); ok {
		id, err := strconv.ParseUint(strings.TrimSpace(src), 10, 16)
		if err != nil {
			return tree.Sample{}, fmt.Errorf("%w: source: %v", ErrNotSample, err)
		}
		v, err := strconv.ParseInt(strings.TrimSpace(val), 10, 32)
		if err != nil {
			return tree.Sample{}, fmt.Errorf("%w: value: %v", ErrNotSample, err)
		}
		return tree.Sample{Kind: tree.SampleReport, SourceID: uint16(id), Value: int32(v)}, nil
	}
	return tree.Sample{}, ErrNotSample
}

// Sink receives parsed samples.
type Sink interface {
	DeliverSample(s tree.Sample)
}

// Bridge reads console lines and forwards the samples among them.
type Bridge struct {
	sink Sink
	log  *zap.Logger
}

func NewBridge(sink Sink) *Bridge {
	return &Bridge{sink: sink, log: logger.Named("gateway")}
}

// Run consumes r until EOF or ctx is done. Closing r is the caller's job;
// cancelling ctx only stops between lines.
func (b *Bridge) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		s, err := ParseLine(line)
		if err != nil {
			metrics.RecordGatewayLine("invalid")
			b.log.Debug("skipping line", zap.String("line", line))
			continue
		}
		metrics.RecordGatewayLine("ok")
		b.sink.DeliverSample(s)
	}
	if err := scanner.Err(); err != nil {
		metrics.RecordGatewayLine("error")
		return fmt.Errorf("read console: %w", err)
	}
	return nil
}

// DialTCP connects to a console exposed on a TCP socket.
func DialTCP(ctx context.Context, address string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial console %s: %w", address, err)
	}
	return conn, nil
}
