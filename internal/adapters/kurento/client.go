// Package kurento implements the media.Client boundary against a Kurento
// media server, speaking JSON-RPC 2.0 over a single websocket connection.
package kurento

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/GroupCall/internal/domain"
)

const writeTimeout = 5 * time.Second

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("kurento rpc error %d: %s", e.Code, e.Message)
}

// Client multiplexes JSON-RPC calls over one websocket. Responses are matched
// to callers by request id; OnIceCandidate events are fanned out to the
// endpoint that subscribed for them.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu        sync.Mutex
	pending   map[string]chan *rpcEnvelope
	handlers  map[string]func(webrtc.ICECandidateInit)
	sessionID string

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to the media server (ws://host:8888/kurento).
func Dial(ctx context.Context, uri string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial media server: %v", domain.ErrUpstream, err)
	}
	c := &Client{
		conn:     conn,
		pending:  make(map[string]chan *rpcEnvelope),
		handlers: make(map[string]func(webrtc.ICECandidateInit)),
		closed:   make(chan struct{}),
	}
	go c.readLoop()
	log.Info().Str("module", "adapters.kurento").Str("uri", uri).Msg("connected to media server")
	return c, nil
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
	return nil
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				log.Error().Str("module", "adapters.kurento").Err(err).Msg("media server connection lost")
			}
			c.failPending()
			return
		}
		var env rpcEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Str("module", "adapters.kurento").Err(err).Msg("bad rpc frame")
			continue
		}
		if env.Method == "onEvent" {
			c.dispatchEvent(env.Params)
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		delete(c.pending, env.ID)
		c.mu.Unlock()
		if ok {
			ch <- &env
		}
	}
}

// failPending unblocks every in-flight call after the connection dies.
func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

type eventParams struct {
	Value struct {
		Type string `json:"type"`
		Data struct {
			Source    string `json:"source"`
			Candidate struct {
				Candidate     string `json:"candidate"`
				SDPMid        string `json:"sdpMid"`
				SDPMLineIndex uint16 `json:"sdpMLineIndex"`
			} `json:"candidate"`
		} `json:"data"`
	} `json:"value"`
}

func (c *Client) dispatchEvent(raw json.RawMessage) {
	var ev eventParams
	if err := json.Unmarshal(raw, &ev); err != nil {
		log.Warn().Str("module", "adapters.kurento").Err(err).Msg("bad event frame")
		return
	}
	if ev.Value.Type != "OnIceCandidate" {
		return
	}
	c.mu.Lock()
	fn := c.handlers[ev.Value.Data.Source]
	c.mu.Unlock()
	if fn == nil {
		return
	}
	mid := ev.Value.Data.Candidate.SDPMid
	idx := ev.Value.Data.Candidate.SDPMLineIndex
	fn(webrtc.ICECandidateInit{
		Candidate:     ev.Value.Data.Candidate.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	})
}

// call performs one request/response exchange, honoring ctx.
func (c *Client) call(ctx context.Context, method string, params map[string]any, result any) error {
	id := uuid.NewString()
	ch := make(chan *rpcEnvelope, 1)

	c.mu.Lock()
	c.pending[id] = ch
	if c.sessionID != "" && params != nil {
		params["sessionId"] = c.sessionID
	}
	c.mu.Unlock()

	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("%w: media rpc write: %v", domain.ErrUpstream, err)
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("%w: media rpc %s: %v", domain.ErrUpstream, method, ctx.Err())
	case env, ok := <-ch:
		if !ok {
			return fmt.Errorf("%w: media server connection lost", domain.ErrUpstream)
		}
		if env.Error != nil {
			return fmt.Errorf("%w: %v", domain.ErrUpstream, env.Error)
		}
		if result != nil && len(env.Result) > 0 {
			if err := json.Unmarshal(env.Result, result); err != nil {
				return fmt.Errorf("%w: media rpc %s: bad result: %v", domain.ErrUpstream, method, err)
			}
		}
		c.rememberSession(env.Result)
		return nil
	}
}

// rememberSession captures the server session id from the first response.
func (c *Client) rememberSession(result json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != "" || len(result) == 0 {
		return
	}
	var s struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(result, &s); err == nil && s.SessionID != "" {
		c.sessionID = s.SessionID
	}
}

type valueResult struct {
	Value string `json:"value"`
}

func (c *Client) create(ctx context.Context, typ string, ctorParams map[string]any) (string, error) {
	params := map[string]any{"type": typ}
	if ctorParams != nil {
		params["constructorParams"] = ctorParams
	}
	var res valueResult
	if err := c.call(ctx, "create", params, &res); err != nil {
		return "", err
	}
	return res.Value, nil
}

func (c *Client) invoke(ctx context.Context, object, operation string, opParams map[string]any) (string, error) {
	params := map[string]any{"object": object, "operation": operation}
	if opParams != nil {
		params["operationParams"] = opParams
	}
	var res valueResult
	if err := c.call(ctx, "invoke", params, &res); err != nil {
		return "", err
	}
	return res.Value, nil
}

func (c *Client) release(ctx context.Context, object string) error {
	err := c.call(ctx, "release", map[string]any{"object": object}, nil)
	c.mu.Lock()
	delete(c.handlers, object)
	c.mu.Unlock()
	return err
}

func (c *Client) subscribe(ctx context.Context, object, eventType string) error {
	return c.call(ctx, "subscribe", map[string]any{"object": object, "type": eventType}, nil)
}

// describe checks that an object id is still alive on the server.
func (c *Client) describe(ctx context.Context, object string) error {
	return c.call(ctx, "describe", map[string]any{"object": object}, nil)
}

func (c *Client) setHandler(object string, fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[object] = fn
}
