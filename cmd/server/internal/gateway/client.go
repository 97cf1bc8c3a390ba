package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shwethakalyani/stock-broker-client-dashboard/cmd/server/internal/hub"
	"github.com/Shwethakalyani/stock-broker-client-dashboard/cmd/server/internal/protocol"
	"github.com/Shwethakalyani/stock-broker-client-dashboard/pkg/models"
)

const (
	maxMessageSize = 512 * 1024
)

// ErrSessionClosed is returned for any request that arrives after the
// session reached its terminal state.
var ErrSessionClosed = errors.New("session closed")

// Session lifecycle. Identification is optional and never required before
// subscribing; closed is terminal.
const (
	stateConnected = iota
	stateIdentified
	stateClosed
)

// Broker is the slice of the hub a session needs.
type Broker interface {
	Subscribe(c hub.ClientInterface, symbol string) (models.StockUpdate, error)
	Unsubscribe(c hub.ClientInterface, symbol string) error
	Unregister(c hub.ClientInterface)
}

// Client is one websocket session: the read/write pumps plus the
// connected -> identified -> closed state machine. All requests are
// dispatched from the read pump, so transitions are single-writer; the
// mutex only guards state reads from other goroutines.
type Client struct {
	conn   net.Conn
	broker Broker
	send   chan []byte
	logger *zap.Logger

	id string

	mu    sync.Mutex
	state int
	label string

	destroyOnce sync.Once

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewClient(conn net.Conn, broker Broker, logger *zap.Logger) *Client {
	return &Client{
		conn:       conn,
		broker:     broker,
		send:       make(chan []byte, 256),
		logger:     logger,
		id:         uuid.NewString(),
		state:      stateConnected,
		writeWait:  5 * time.Second,
		pongWait:   60 * time.Second,
		pingPeriod: 50 * time.Second,
	}
}

func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) ID() string { return c.id }

// Label returns the advisory user label, empty until identify.
func (c *Client) Label() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.label
}

// Close triggers teardown; safe to call multiple times.
func (c *Client) Close() { c.destroy() }

// destroy is the single terminal transition: purge subscriptions, mark the
// session closed, then release the write pump. The hub removes this client
// under its own lock before the send channel closes, so no broadcast can
// race a send against the close.
func (c *Client) destroy() {
	c.destroyOnce.Do(func() {
		c.mu.Lock()
		c.state = stateClosed
		c.mu.Unlock()

		c.broker.Unregister(c)
		close(c.send)
	})
}

func (c *Client) closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateClosed
}

func (c *Client) SendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Marshal failed", zap.Error(err))
		return
	}
	c.SendBytes(b)
}

func (c *Client) SendBytes(b []byte) {
	select {
	case c.send <- b:
	default:
		// Drop message if buffer full (Backpressure)
	}
}

// Dispatch applies one client request to the session. Requests after the
// terminal transition are rejected with ErrSessionClosed and mutate nothing.
func (c *Client) Dispatch(req protocol.WSRequest) error {
	if c.closed() {
		return ErrSessionClosed
	}

	switch req.Action {
	case protocol.ActionIdentify:
		c.handleIdentify(req)
	case protocol.ActionSubscribe:
		c.handleSubscribe(req)
	case protocol.ActionUnsubscribe:
		c.handleUnsubscribe(req)
	default:
		c.sendError(req.ID, "Unknown action: "+req.Action)
	}
	return nil
}

// handleIdentify sets the advisory label. Policy: first identify wins,
// repeats are ignored; a blank label changes nothing and gets an errorNotice.
func (c *Client) handleIdentify(req protocol.WSRequest) {
	label := strings.TrimSpace(req.Payload.Label)
	if label == "" {
		c.sendError(req.ID, "Label cannot be empty")
		return
	}

	c.mu.Lock()
	if c.state == stateIdentified {
		c.mu.Unlock()
		c.sendAck(req.ID, "Already identified")
		return
	}
	c.label = label
	c.state = stateIdentified
	c.mu.Unlock()

	c.logger.Info("Client identified", zap.String("client_id", c.id), zap.String("label", label))
	c.sendAck(req.ID, "Identified as "+label)
}

func (c *Client) handleSubscribe(req protocol.WSRequest) {
	symbol := normalizeSymbol(req.Payload.Symbol)
	if symbol == "" {
		c.sendError(req.ID, "No symbol provided")
		return
	}

	snapshot, err := c.broker.Subscribe(c, symbol)
	if err != nil {
		c.sendError(req.ID, "Cannot subscribe: "+err.Error())
		return
	}

	c.sendAck(req.ID, "Subscribed to "+symbol)
	c.SendJSON(protocol.WSResponse{Type: protocol.TypePriceUpdate, Data: snapshot})
}

func (c *Client) handleUnsubscribe(req protocol.WSRequest) {
	symbol := normalizeSymbol(req.Payload.Symbol)
	if symbol == "" {
		c.sendError(req.ID, "No symbol provided")
		return
	}

	if err := c.broker.Unsubscribe(c, symbol); err != nil {
		c.sendError(req.ID, "Cannot unsubscribe: "+err.Error())
		return
	}
	c.sendAck(req.ID, "Unsubscribed from "+symbol)
}

func (c *Client) readPump() {
	defer func() {
		c.destroy()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

	for {
		header, err := ws.ReadHeader(c.conn)
		if err != nil {
			break
		}

		if header.Length > int64(maxMessageSize) {
			c.logger.Warn("Msg too big", zap.Int64("size", header.Length))
			break
		}

		if !header.Fin {
			c.logger.Warn("Client sent fragmented message (not supported)")
			break
		}

		payload := make([]byte, header.Length)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			break
		}

		if header.Masked {
			ws.Cipher(payload, header.Mask, 0)
		}

		if header.OpCode == ws.OpClose {
			break
		}
		if header.OpCode == ws.OpPong {
			c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
			continue
		}

		if header.OpCode == ws.OpText {
			var req protocol.WSRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				c.SendJSON(protocol.WSResponse{Type: protocol.TypeErrorNotice, Message: "Invalid JSON"})
				continue
			}

			if err := c.Dispatch(req); err != nil {
				c.logger.Debug("Dropped request on closed session", zap.String("client_id", c.id))
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				c.conn.Write(ws.CompiledClose)
				return
			}
			if err := wsutil.WriteServerText(c.conn, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := wsutil.WriteServerMessage(c.conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendAck(id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeAck, ID: id, Status: "success", Message: msg})
}

func (c *Client) sendError(id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeErrorNotice, ID: id, Status: "error", Message: msg})
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
