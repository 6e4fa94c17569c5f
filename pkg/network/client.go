package network

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"
)

// Client writes length-prefixed messages to peers, keeping one connection
// per address open between sends.
type Client struct {
	timeout time.Duration

	mu    sync.Mutex
	conns map[string]net.Conn
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		timeout: timeout,
		conns:   make(map[string]net.Conn),
	}
}

// Send delivers data to address. A stale cached connection is replaced and
// the write retried once.
func (c *Client) Send(address string, data []byte) error {
	conn, cached, err := c.conn(address)
	if err != nil {
		return err
	}
	if err := c.write(conn, data); err != nil {
		c.drop(address, conn)
		if !cached {
			return err
		}
		if conn, _, err = c.conn(address); err != nil {
			return err
		}
		if err := c.write(conn, data); err != nil {
			c.drop(address, conn)
			return err
		}
	}
	return nil
}

func (c *Client) conn(address string) (net.Conn, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[address]; ok {
		return conn, true, nil
	}
	conn, err := net.DialTimeout("tcp", address, c.timeout)
	if err != nil {
		return nil, false, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	c.conns[address] = conn
	return conn, false, nil
}

func (c *Client) drop(address string, conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conns[address] == conn {
		delete(c.conns, address)
	}
	conn.Close()
}

func (c *Client) write(conn net.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	msg := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(msg[:4], uint32(len(data)))
	copy(msg[4:], data)

	if _, err := conn.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Close drops every cached connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for addr, conn := range c.conns {
		conn.Close()
		delete(c.conns, addr)
	}
}
