// Package bridge wires the remote session, the reconciler, the subscriber
// broker and chat together.
package bridge

import (
	"context"

	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/command"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/connection"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/logger"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/playback"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/remote"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/subscription"
)

// Chat is the chat front end: replies go out through Say, commands come in
// through OnCommand.
type Chat interface {
	command.Sayer
	OnCommand(fn func(command.Message))
	Connect()
	Disconnect()
}

type Options struct {
	Dialer remote.Dialer
	// OnOpen and OnClose are set by the bridge.
	Remote    remote.Options
	Playback  playback.Options
	Sink      playback.Sink
	SendQueue int
}

type Bridge struct {
	Session    *remote.Session
	Reconciler *playback.Reconciler
	Broker     *subscription.Broker
	Router     *command.Router

	chat Chat
}

// New builds the graph. Chat is connected once the remote socket is open
// and disconnected when it closes.
func New(ctx context.Context, chat Chat, opts Options) (*Bridge, error) {
	b := &Bridge{chat: chat}

	remoteOpts := opts.Remote
	remoteOpts.OnOpen = b.onRemoteOpen
	remoteOpts.OnClose = b.onRemoteClose
	b.Session = remote.NewSession(opts.Dialer, remote.NotificationHandlerFunc(b.handleNotification), remoteOpts)
	b.Reconciler = playback.NewReconciler(b.Session, opts.Sink, opts.Playback)

	b.Broker = subscription.NewBroker(connection.NewManager(opts.SendQueue), b.Reconciler)
	b.Router = command.NewRouter(ctx, b.Broker)
	if err := command.RegisterDefaults(b.Router, chat, b.Reconciler); err != nil {
		return nil, err
	}
	for _, name := range b.Router.Names() {
		b.Broker.Register(name)
	}

	chat.OnCommand(func(m command.Message) {
		b.Router.HandleMessage(m)
	})
	return b, nil
}

func (b *Bridge) handleNotification(n remote.Notification) {
	b.Reconciler.HandleNotification(n)
}

// Run blocks on the remote session; it returns when the socket closes or
// ctx ends.
func (b *Bridge) Run(ctx context.Context) error {
	return b.Session.Run(ctx)
}

func (b *Bridge) onRemoteOpen() {
	logger.Info("Remote player ready, connecting chat")
	b.chat.Connect()
}

func (b *Bridge) onRemoteClose(err error) {
	if err != nil {
		logger.WarnF("Remote player gone, disconnecting chat, details: %v", err)
	}
	b.chat.Disconnect()
}

// Wait joins background command handlers and reconciler calls.
func (b *Bridge) Wait() {
	b.Router.Wait()
	b.Reconciler.Wait()
}
