package network

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	maxMessageSize = 64 * 1024
	idleTimeout    = 30 * time.Second
)

// MessageHandler handles incoming messages
type MessageHandler interface {
	HandleMessage(data []byte, conn net.Conn) error
}

// Server accepts length-prefixed messages from peers over TCP.
type Server struct {
	address  string
	handler  MessageHandler
	listener net.Listener
	log      *zap.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	wg       sync.WaitGroup
	stopChan chan struct{}
}

func NewServer(address string, handler MessageHandler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		address:  address,
		handler:  handler,
		log:      log,
		conns:    make(map[net.Conn]struct{}),
		stopChan: make(chan struct{}),
	}
}

// Start starts the TCP server
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	s.listener = listener

	s.log.Info("link listening", zap.String("address", listener.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr is the bound listen address; nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every open connection, then waits for the
// handlers to return.
func (s *Server) Stop() error {
	close(s.stopChan)
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", zap.Error(err))
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	lengthBytes := make([]byte, 4)
	for {
		conn.SetReadDeadline(time.Now().Add(idleTimeout))

		if _, err := io.ReadFull(conn, lengthBytes); err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("read length failed", zap.Error(err))
			}
			return
		}

		length := binary.BigEndian.Uint32(lengthBytes)
		if length > maxMessageSize {
			s.log.Warn("message too large", zap.Uint32("bytes", length))
			return
		}

		data := make([]byte, length)
		if _, err := io.ReadFull(conn, data); err != nil {
			s.log.Debug("read message failed", zap.Error(err))
			return
		}

		if err := s.handler.HandleMessage(data, conn); err != nil {
			s.log.Debug("message rejected", zap.Error(err))
		}
	}
}
