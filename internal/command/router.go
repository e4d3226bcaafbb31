// Package command turns chat messages into command invocations.
package command

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/logger"
)

const Prefix = "!"

type User struct {
	Name        string
	DisplayName string
}

// Message is one chat line as delivered by the chat adapter.
type Message struct {
	Channel string
	User    User
	Text    string
}

type Request struct {
	Command string
	Channel string
	User    User
	Args    []string
}

type Handler interface {
	Handle(ctx context.Context, req Request)
}

type HandlerFunc func(ctx context.Context, req Request)

func (f HandlerFunc) Handle(ctx context.Context, req Request) { f(ctx, req) }

// Command is a registered chat command. A nil Handler makes the command an
// event for subscribers only.
type Command struct {
	Name        string
	Description string
	Handler     Handler
}

// Publisher receives every recognized command before its handler runs.
type Publisher interface {
	Publish(eventType, channel, user string, args []string)
}

type Router struct {
	ctx       context.Context
	publisher Publisher

	mu       sync.RWMutex
	commands []Command
	index    map[string]int

	wg sync.WaitGroup
}

func NewRouter(ctx context.Context, publisher Publisher) *Router {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Router{
		ctx:       ctx,
		publisher: publisher,
		index:     make(map[string]int),
	}
}

func (r *Router) Register(cmd Command) error {
	name := strings.ToLower(cmd.Name)
	if name == "" {
		return fmt.Errorf("command name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[name]; ok {
		return fmt.Errorf("command %s already registered", name)
	}
	cmd.Name = name
	r.index[name] = len(r.commands)
	r.commands = append(r.commands, cmd)
	return nil
}

// Commands lists registered commands in registration order.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

func (r *Router) Names() []string {
	commands := r.Commands()
	names := make([]string, 0, len(commands))
	for _, c := range commands {
		names = append(names, c.Name)
	}
	return names
}

func (r *Router) lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return Command{}, false
	}
	return r.commands[i], true
}

// Parse splits "!name arg1 arg2" into a lowercased name and its arguments.
func Parse(text string) (string, []string, bool) {
	if !strings.HasPrefix(text, Prefix) {
		return "", nil, false
	}
	tokens := strings.Fields(strings.TrimPrefix(text, Prefix))
	if len(tokens) == 0 {
		return "", nil, false
	}
	return strings.ToLower(tokens[0]), tokens[1:], true
}

// HandleMessage publishes a recognized command to subscribers and then runs
// its handler in the background. It reports whether the command was known.
func (r *Router) HandleMessage(msg Message) bool {
	name, args, ok := Parse(msg.Text)
	if !ok {
		return false
	}
	cmd, ok := r.lookup(name)
	if !ok {
		logger.DebugF("Ignoring unknown command %s from %s", name, msg.User.Name)
		return false
	}
	logger.InfoF("[%s] %s issued !%s %s", msg.Channel, msg.User.DisplayName, name, strings.Join(args, " "))

	if r.publisher != nil {
		r.publisher.Publish(name, msg.Channel, msg.User.DisplayName, args)
	}
	if cmd.Handler == nil {
		return true
	}

	req := Request{Command: name, Channel: msg.Channel, User: msg.User, Args: args}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				logger.ErrorF("Command %s panicked: %v", name, p)
			}
		}()
		cmd.Handler.Handle(r.ctx, req)
	}()
	return true
}

// Wait blocks until running handlers return.
func (r *Router) Wait() {
	r.wg.Wait()
}
