package main

import (
	"context"
	"os"
	"time"

	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/bridge"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/chat"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/config"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/database"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/event"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/logger"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/playback"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/remote"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/server"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/utils"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", config.DefaultPath, "path to the JSON configuration file")
	debug := pflag.BoolP("debug", "d", false, "enable debug logging")
	pflag.Parse()

	cfg, err := config.ReadConfig(*configPath)
	if err != nil {
		logger.FatalF("Error occured while reading config %v", err)
		os.Exit(1)
	}
	config.SetDebugMode(*debug)

	loggerCallback := logger.Init()
	logger.Debug("Application initializing...")
	cleaner := event.NewCleaner()
	cleaner.Init(loggerCallback)

	if err := run(cleaner, cfg); err != nil {
		logger.ErrorF("%v", err)
	}
	cleaner.Shutdown()
	cleaner.Wait()
}

func run(cleaner *event.Cleaner, cfg config.Config) error {
	ctx := cleaner.Context()

	var tokens remote.TokenStore = database.NewMemoryStore()
	if cfg.Database.Enabled {
		store, closer, err := database.ConnectDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		cleaner.Add(closer)
		tokens = store
	}

	var sink playback.Sink = playback.NopSink{}
	if cfg.NowPlaying.File != "" {
		sink = playback.FileSink{Path: cfg.NowPlaying.File}
	}

	twitch := chat.NewTwitch(cfg.Twitch.Username, cfg.Twitch.Token, cfg.Twitch.Channels)
	b, err := bridge.New(ctx, twitch, bridge.Options{
		Dialer: remote.WebSocketDialer{URI: cfg.Remote.URI},
		Remote: remote.Options{
			AppName:     cfg.Remote.AppName,
			Token:       cfg.Remote.Token,
			CallTimeout: utils.DurationOr(cfg.Remote.CallTimeout, remote.DefaultCallTimeout),
			Prompter:    remote.TerminalPrompter{In: os.Stdin, Out: os.Stdout},
			Tokens:      tokens,
		},
		Playback: playback.Options{
			CacheSize: cfg.SearchCache.Size,
			CacheTTL:  utils.DurationOr(cfg.SearchCache.TTL, 10*time.Minute),
		},
		Sink:      sink,
		SendQueue: cfg.WebSocket.SendQueue,
	})
	if err != nil {
		return err
	}

	srv := server.NewServer(cfg.WebSocket.Port, b.Broker)
	if err := srv.Start(); err != nil {
		return err
	}
	cleaner.Add(srv)
	cleaner.Add(event.CallableFunc(func(ctx context.Context) error {
		twitch.Disconnect()
		done := make(chan struct{})
		go func() {
			b.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))

	logger.InfoF("Connecting to remote player at %s", cfg.Remote.URI)
	return b.Run(ctx)
}
