// Package chat connects the command router to Twitch chat.
package chat

import (
	"errors"
	"strings"
	"sync"

	"github.com/gempir/go-twitch-irc/v4"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/command"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/logger"
)

// ircClient is the part of *twitch.Client the adapter uses.
type ircClient interface {
	Join(channels ...string)
	OnPrivateMessage(callback func(message twitch.PrivateMessage))
	OnConnect(callback func())
	Connect() error
	Disconnect() error
	Say(channel, text string)
}

type Twitch struct {
	client   ircClient
	username string
	channels []string

	mu        sync.Mutex
	running   bool
	onCommand func(command.Message)
}

// NewTwitch logs in as username; an empty username joins anonymously and
// can only read.
func NewTwitch(username, token string, channels []string) *Twitch {
	var client *twitch.Client
	if username == "" {
		client = twitch.NewAnonymousClient()
	} else {
		if !strings.HasPrefix(token, "oauth:") {
			token = "oauth:" + token
		}
		client = twitch.NewClient(username, token)
	}
	return newTwitch(client, username, channels)
}

func newTwitch(client ircClient, username string, channels []string) *Twitch {
	t := &Twitch{
		client:   client,
		username: strings.ToLower(username),
		channels: channels,
	}
	client.OnPrivateMessage(t.handlePrivateMessage)
	client.OnConnect(func() {
		logger.InfoF("Connected to Twitch chat as %s, channels %v", t.name(), t.channels)
	})
	return t
}

func (t *Twitch) name() string {
	if t.username == "" {
		return "anonymous"
	}
	return t.username
}

// OnCommand sets the receiver for chat lines starting with the command prefix.
func (t *Twitch) OnCommand(fn func(command.Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCommand = fn
}

func (t *Twitch) handlePrivateMessage(m twitch.PrivateMessage) {
	if !strings.HasPrefix(m.Message, command.Prefix) {
		return
	}
	if t.username != "" && strings.EqualFold(m.User.Name, t.username) {
		return
	}

	t.mu.Lock()
	fn := t.onCommand
	t.mu.Unlock()
	if fn == nil {
		return
	}

	displayName := m.User.DisplayName
	if displayName == "" {
		displayName = m.User.Name
	}
	fn(command.Message{
		Channel: m.Channel,
		User:    command.User{Name: m.User.Name, DisplayName: displayName},
		Text:    m.Message,
	})
}

func (t *Twitch) Say(channel, text string) {
	if t.username == "" {
		logger.WarnF("[%s] Anonymous chat cannot reply: %s", channel, text)
		return
	}
	t.client.Say(strings.TrimPrefix(channel, "#"), text)
}

// Connect joins the configured channels and runs the IRC loop in the
// background. Calling it while connected is a no-op.
func (t *Twitch) Connect() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.mu.Unlock()

	t.client.Join(t.channels...)
	go func() {
		err := t.client.Connect()
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
		if err != nil && !errors.Is(err, twitch.ErrClientDisconnected) {
			logger.ErrorF("Twitch chat stopped, details: %v", err)
			return
		}
		logger.Info("Disconnected from Twitch chat")
	}()
}

func (t *Twitch) Disconnect() {
	t.mu.Lock()
	running := t.running
	t.mu.Unlock()
	if !running {
		return
	}
	if err := t.client.Disconnect(); err != nil {
		logger.WarnF("Error occured while disconnecting from Twitch chat, details: %v", err)
	}
}
