// Package subscription fans chat command events out to subscriber sockets
// and answers their playback state queries.
package subscription

import (
	"encoding/json"
	"sync"

	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/connection"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/logger"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/playback"
)

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionGetQueue    = "getQueue"
	ActionGetPlaying  = "getPlaying"
)

// StateProvider is the read side of the playback reconciler.
type StateProvider interface {
	Queue() []playback.Track
	NowPlaying() *playback.Projection
}

type request struct {
	Action string `json:"action"`
	Event  string `json:"event"`
}

type reply struct {
	Action string `json:"action"`
	Value  any    `json:"value"`
}

// Event is what a subscriber receives when a chat command fires.
type Event struct {
	Event     string   `json:"event"`
	Channel   string   `json:"channel"`
	User      string   `json:"user"`
	Arguments []string `json:"arguments"`
}

// Broker owns the subscription matrix. Subscriptions only exist for event
// types registered up front; everything else is ignored.
type Broker struct {
	conns *connection.Manager
	state StateProvider

	mu     sync.RWMutex
	events map[string]map[string]struct{}
}

func NewBroker(conns *connection.Manager, state StateProvider, events ...string) *Broker {
	b := &Broker{
		conns:  conns,
		state:  state,
		events: make(map[string]map[string]struct{}),
	}
	for _, e := range events {
		b.Register(e)
	}
	return b
}

func (b *Broker) Register(eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.events[eventType]; !ok {
		b.events[eventType] = make(map[string]struct{})
	}
}

func (b *Broker) OnConnect() *connection.Connection {
	return b.conns.Open()
}

// OnMessage handles one inbound subscriber message. Malformed messages and
// unknown actions are logged and dropped.
func (b *Broker) OnMessage(connID string, raw []byte) {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.WarnF("[%s] Dropping malformed message, details: %v", connID, err)
		return
	}

	switch req.Action {
	case ActionSubscribe:
		b.subscribe(connID, req.Event)
	case ActionUnsubscribe:
		b.unsubscribe(connID, req.Event)
	case ActionGetQueue:
		b.reply(connID, ActionGetQueue, b.state.Queue())
	case ActionGetPlaying:
		// a nil projection must reach the client as null, not as a typed nil
		var value any
		if now := b.state.NowPlaying(); now != nil {
			value = now
		}
		b.reply(connID, ActionGetPlaying, value)
	default:
		logger.WarnF("[%s] Unknown action %q", connID, req.Action)
	}
}

func (b *Broker) subscribe(connID, eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.events[eventType]
	if !ok {
		logger.DebugF("[%s] Ignoring subscription to unknown event %q", connID, eventType)
		return
	}
	if _, open := b.conns.Get(connID); !open {
		return
	}
	set[connID] = struct{}{}
	logger.DebugF("[%s] Subscribed to %s", connID, eventType)
}

func (b *Broker) unsubscribe(connID, eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.events[eventType]; ok {
		delete(set, connID)
	}
}

func (b *Broker) reply(connID, action string, value any) {
	data, err := json.Marshal(reply{Action: action, Value: value})
	if err != nil {
		logger.ErrorF("[%s] Error occured while encoding %s reply, details: %v", connID, action, err)
		return
	}
	if err := b.conns.Send(connID, data); err != nil {
		logger.WarnF("[%s] Fail to send %s reply, details: %v", connID, action, err)
	}
}

// OnClose purges connID from every subscriber set and closes its queue
// while holding the write lock, so no Publish can reach it afterwards.
func (b *Broker) OnClose(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, set := range b.events {
		delete(set, connID)
	}
	b.conns.Remove(connID)
}

// Publish delivers an event to every current subscriber of eventType. A
// slow or gone subscriber only loses its own copy.
func (b *Broker) Publish(eventType, channel, user string, args []string) {
	if args == nil {
		args = []string{}
	}
	data, err := json.Marshal(Event{Event: eventType, Channel: channel, User: user, Arguments: args})
	if err != nil {
		logger.ErrorF("Error occured while encoding %s event, details: %v", eventType, err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for connID := range b.events[eventType] {
		if err := b.conns.Send(connID, data); err != nil {
			logger.WarnF("[%s] Dropping %s event, details: %v", connID, eventType, err)
		}
	}
}

func (b *Broker) Subscribers(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events[eventType])
}
