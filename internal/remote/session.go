package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/logger"
)

const (
	DefaultCallTimeout = 5 * time.Second
	writeTimeout       = 10 * time.Second
)

type Options struct {
	// AppName identifies this application in the connect handshake.
	AppName string
	// Token is used when the token store has nothing saved.
	Token       string
	CallTimeout time.Duration
	Prompter    CodePrompter
	Tokens      TokenStore
	// OnOpen runs after the connect call has been sent.
	OnOpen func()
	// OnClose runs once when the socket stops; pending calls are left to time out.
	OnClose func(err error)
}

// Session owns the remote socket and the table of pending calls.
type Session struct {
	dialer  Dialer
	opts    Options
	handler NotificationHandler

	mu      sync.Mutex
	conn    Conn
	ctx     context.Context
	closed  bool
	started bool
	nextID  uint64
	pending map[uint64]*Call
	token   string

	writeMu sync.Mutex
}

func NewSession(dialer Dialer, handler NotificationHandler, opts Options) *Session {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if handler == nil {
		handler = NotificationHandlerFunc(func(Notification) {})
	}
	return &Session{
		dialer:  dialer,
		opts:    opts,
		handler: handler,
		ctx:     context.Background(),
		pending: make(map[uint64]*Call),
		token:   opts.Token,
	}
}

// Run dials, performs the handshake and reads until the socket fails or ctx
// ends. It never reconnects.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.started = true
	s.mu.Unlock()

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("error occured while connecting to remote: %w", err)
	}
	s.attach(ctx, conn)
	logger.Info("Connected to remote player")

	s.sendControl("")
	if s.opts.OnOpen != nil {
		s.opts.OnOpen()
	}

	var readErr error
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			readErr = err
			break
		}
		s.Dispatch(data)
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if err := conn.Close(); err != nil {
		logger.DebugF("Error occured while closing remote connection, details: %v", err)
	}

	if ctx.Err() != nil {
		readErr = nil
		logger.Info("Remote session stopped")
	} else {
		logger.WarnF("Remote connection closed, details: %v", readErr)
	}
	if s.opts.OnClose != nil {
		s.opts.OnClose(readErr)
	}
	return readErr
}

func (s *Session) attach(ctx context.Context, conn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	s.ctx = ctx
	s.closed = false
}

// Go submits a call and transmits it immediately. A timeout <= 0 uses the
// session default.
func (s *Session) Go(namespace, method string, args []any, timeout time.Duration) *Call {
	if timeout <= 0 {
		timeout = s.opts.CallTimeout
	}
	call := newCall(namespace, method, args)

	s.mu.Lock()
	if s.conn == nil || s.closed {
		s.mu.Unlock()
		call.resolve(nil, fmt.Errorf("%s.%s: %w", namespace, method, ErrSessionClosed))
		return call
	}
	s.nextID++
	call.ID = s.nextID
	call.SubmittedAt = time.Now()
	s.pending[call.ID] = call
	id := call.ID
	call.timer = time.AfterFunc(timeout, func() { s.expire(id) })
	conn := s.conn
	s.mu.Unlock()

	data, err := json.Marshal(Request{
		RequestID: call.ID,
		Namespace: namespace,
		Method:    method,
		Arguments: args,
	})
	if err == nil {
		err = s.write(conn, data)
	}
	if err != nil {
		if c := s.remove(id); c != nil {
			c.resolve(nil, fmt.Errorf("error occured while sending %s.%s: %w", namespace, method, err))
		}
		return call
	}
	logger.DebugF("Sent call %d %s.%s", id, namespace, method)
	return call
}

// Call submits a call and waits for its outcome.
func (s *Session) Call(ctx context.Context, namespace, method string, args []any, timeout time.Duration) (json.RawMessage, error) {
	return s.Go(namespace, method, args, timeout).Wait(ctx)
}

// Pending reports how many calls are awaiting a result.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Session) write(conn Conn, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return conn.Write(ctx, data)
}

// remove takes the call out of the pending table. Only the caller that gets
// a non-nil result may resolve it.
func (s *Session) remove(id uint64) *Call {
	s.mu.Lock()
	call, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	call.timer.Stop()
	return call
}

func (s *Session) expire(id uint64) {
	call := s.remove(id)
	if call == nil {
		return
	}
	logger.DebugF("Call %d %s.%s timed out", id, call.Namespace, call.Method)
	call.resolve(nil, fmt.Errorf("%s.%s (id %d): %w", call.Namespace, call.Method, id, ErrTimeout))
}

// Dispatch handles one inbound socket message. Undecodable messages are
// logged and dropped.
func (s *Session) Dispatch(raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.WarnF("Dropping inbound message: %v, details: %v", ErrMalformedMessage, err)
		return
	}

	if msg.Namespace == namespaceResult && msg.RequestID != nil {
		s.complete(*msg.RequestID, msg)
		return
	}

	switch msg.Channel {
	case "":
		logger.DebugF("Ignoring inbound message without channel: %s", string(raw))
	case ChannelConnect:
		s.handleConnect(msg.Payload)
	default:
		s.handler.HandleNotification(Notification{Channel: msg.Channel, Payload: msg.Payload})
	}
}

func (s *Session) complete(id uint64, msg inbound) {
	call := s.remove(id)
	if call == nil {
		logger.DebugF("Discarding result for unknown or expired call %d", id)
		return
	}
	if msg.Type == resultTypeError {
		call.resolve(nil, &RemoteError{Namespace: call.Namespace, Method: call.Method, Value: msg.Value})
		return
	}
	call.resolve(msg.Value, nil)
}
