/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suparena/chainquery/errors"
	"github.com/suparena/chainquery/transport"
)

// Options configures a Client
type Options struct {
	Logger           *zap.Logger   // Structured logger (default: no-op)
	HandshakeTimeout time.Duration // WebSocket handshake timeout (default: 10s)
	WriteTimeout     time.Duration // Per-message write deadline (default: 10s)
	ReadLimit        int64         // Maximum inbound message size (default: 16 MiB)
}

// Option is a functional option for configuring a Client
type Option func(*Options)

// DefaultOptions returns default client options
func DefaultOptions() Options {
	return Options{
		Logger:           zap.NewNop(),
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadLimit:        16 << 20,
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *zap.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithHandshakeTimeout sets the handshake timeout
func WithHandshakeTimeout(d time.Duration) Option {
	return func(opts *Options) {
		opts.HandshakeTimeout = d
	}
}

// WithWriteTimeout sets the write deadline of each request
func WithWriteTimeout(d time.Duration) Option {
	return func(opts *Options) {
		opts.WriteTimeout = d
	}
}

// WithReadLimit sets the maximum size of an inbound message
func WithReadLimit(n int64) Option {
	return func(opts *Options) {
		opts.ReadLimit = n
	}
}

// Client is a JSON-RPC 2.0 transport over a single WebSocket connection.
// Notifications of each subscription are delivered in order on a goroutine of
// their own, so a NotifyFunc may issue calls, including Unsubscribe, on the same Client.
type Client struct {
	conn    *websocket.Conn
	options Options
	logger  *zap.Logger
	group   *errgroup.Group

	writeMu sync.Mutex

	mu        sync.Mutex
	nextID    uint64
	pending   map[uint64]*pendingCall
	subs      map[transport.SubscriptionID]*subscription
	early     map[transport.SubscriptionID][]json.RawMessage
	closed    bool
	closeErr  error
	closeOnce sync.Once
}

// maxEarlyNotifications bounds the notifications buffered for a subscription id
// whose subscribe response has not been processed yet.
const maxEarlyNotifications = 256

type pendingCall struct {
	method string
	ch     chan response
}

type response struct {
	result json.RawMessage
	err    error
}

type subscription struct {
	unsubscribe string
	dispatch    *dispatcher
}

var _ transport.Transport = (*Client)(nil)

// Dial connects to a node endpoint such as ws://127.0.0.1:9944.
func Dial(ctx context.Context, endpoint string, opts ...Option) (*Client, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}

	dialer := websocket.Dialer{HandshakeTimeout: options.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, errors.NewTransportError("dial", 0, err.Error())
	}
	conn.SetReadLimit(options.ReadLimit)

	c := &Client{
		conn:    conn,
		options: options,
		logger:  options.Logger.With(zap.String("endpoint", endpoint)),
		group:   new(errgroup.Group),
		pending: make(map[uint64]*pendingCall),
		subs:    make(map[transport.SubscriptionID]*subscription),
		early:   make(map[transport.SubscriptionID][]json.RawMessage),
	}
	c.group.Go(c.readLoop)
	c.logger.Debug("Connected to node")
	return c, nil
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type message struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	Method string          `json:"method"`
	Params *struct {
		Subscription json.RawMessage `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

// Send implements transport.Transport.
func (c *Client) Send(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return c.call(ctx, method, params)
}

func (c *Client) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if params == nil {
		params = []any{}
	}
	ch := make(chan response, 1)

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		return nil, err
	}
	c.nextID++
	id := c.nextID
	c.pending[id] = &pendingCall{method: method, ch: ch}
	c.mu.Unlock()

	if err := c.write(request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		c.forget(id)
		return nil, errors.NewTransportError(method, 0, err.Error())
	}

	select {
	case resp := <-ch:
		return resp.result, resp.err
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

func (c *Client) write(req request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.options.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteJSON(req)
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// Subscribe implements transport.Transport. Notifications that arrive before
// the subscription id is known are buffered and delivered first.
func (c *Client) Subscribe(ctx context.Context, method string, params []any, notify transport.NotifyFunc) (transport.SubscriptionID, error) {
	result, err := c.call(ctx, method, params)
	if err != nil {
		return "", err
	}
	id, err := parseSubscriptionID(result)
	if err != nil {
		return "", errors.NewTransportError(method, 0, err.Error())
	}

	d := newDispatcher(notify)

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		return "", err
	}
	c.subs[id] = &subscription{unsubscribe: transport.UnsubscribeMethod(method), dispatch: d}
	for _, raw := range c.early[id] {
		d.push(raw)
	}
	delete(c.early, id)
	c.group.Go(d.run)
	c.mu.Unlock()

	c.logger.Debug("Subscribed", zap.String("method", method), zap.String("subscription", string(id)))
	return id, nil
}

// Unsubscribe implements transport.Transport. Queued notifications of id are dropped.
func (c *Client) Unsubscribe(ctx context.Context, id transport.SubscriptionID) error {
	c.mu.Lock()
	sub, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if !ok {
		return errors.NewTransportError(transport.MethodUnsubscribeStorage, -32602, "unknown subscription "+string(id))
	}
	sub.dispatch.stop()

	result, err := c.call(ctx, sub.unsubscribe, []any{string(id)})
	if err != nil {
		return err
	}
	var confirmed bool
	if err := json.Unmarshal(result, &confirmed); err != nil || !confirmed {
		c.logger.Warn("Node did not confirm unsubscribe",
			zap.String("subscription", string(id)),
			zap.ByteString("result", result))
	}
	c.logger.Debug("Unsubscribed", zap.String("subscription", string(id)))
	return nil
}

// Close closes the connection, fails pending calls and stops every subscription.
// It must not be called from a NotifyFunc.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if !c.closed {
			c.closed = true
			c.closeErr = errors.NewTransportError("close", 0, "client closed")
		}
		c.mu.Unlock()

		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	return c.group.Wait()
}

func (c *Client) readLoop() error {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return nil
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("Dropping malformed message", zap.Error(err))
		return
	}

	if msg.ID != nil {
		c.mu.Lock()
		call, ok := c.pending[*msg.ID]
		delete(c.pending, *msg.ID)
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("Dropping response to abandoned call", zap.Uint64("id", *msg.ID))
			return
		}
		if msg.Error != nil {
			call.ch <- response{err: errors.NewTransportError(call.method, msg.Error.Code, msg.Error.Message)}
			return
		}
		call.ch <- response{result: msg.Result}
		return
	}

	if msg.Params == nil {
		c.logger.Warn("Dropping message without id or params", zap.String("method", msg.Method))
		return
	}
	id, err := parseSubscriptionID(msg.Params.Subscription)
	if err != nil {
		c.logger.Warn("Dropping notification", zap.String("method", msg.Method), zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if sub, ok := c.subs[id]; ok {
		sub.dispatch.push(msg.Params.Result)
		return
	}
	if len(c.early[id]) >= maxEarlyNotifications {
		c.logger.Warn("Dropping notification for unknown subscription", zap.String("subscription", string(id)))
		return
	}
	c.early[id] = append(c.early[id], msg.Params.Result)
}

// fail marks the client closed after the connection ends and releases everything waiting on it.
func (c *Client) fail(cause error) {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.closeErr = errors.NewTransportError("connection", 0, cause.Error())
		c.logger.Error("Connection lost", zap.Error(cause))
	}
	pending := c.pending
	subs := c.subs
	c.pending = make(map[uint64]*pendingCall)
	c.subs = make(map[transport.SubscriptionID]*subscription)
	c.early = make(map[transport.SubscriptionID][]json.RawMessage)
	c.mu.Unlock()

	for _, call := range pending {
		call.ch <- response{err: errors.NewTransportError(call.method, 0, "connection closed: "+cause.Error())}
	}
	for _, sub := range subs {
		sub.dispatch.stop()
	}
}

// parseSubscriptionID accepts string and numeric subscription ids.
func parseSubscriptionID(raw json.RawMessage) (transport.SubscriptionID, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return transport.SubscriptionID(s), nil
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		return transport.SubscriptionID(strconv.FormatUint(n, 10)), nil
	}
	return "", fmt.Errorf("invalid subscription id %s", string(raw))
}
