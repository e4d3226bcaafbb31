package command

import (
	"context"
	"errors"
	"strings"

	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/logger"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/playback"
)

// Sayer posts a line to a chat channel.
type Sayer interface {
	Say(channel, text string)
}

// Player is the playback side the handlers drive.
type Player interface {
	FindTrack(ctx context.Context, searchText string) (playback.Track, error)
	Enqueue(track playback.Track)
	Head() (playback.Track, bool)
	NowPlaying() *playback.Projection
}

// RegisterDefaults registers song, help, next, playing and queue, in that
// order; help lists them in the same order.
func RegisterDefaults(r *Router, chat Sayer, player Player) error {
	commands := []Command{
		{Name: "song", Description: "Play song", Handler: requestSong(chat, player)},
		{Name: "help", Description: "Help", Handler: displayHelp(r, chat)},
		{Name: "next", Description: "Show next track in queue", Handler: displayNext(chat, player)},
		{Name: "playing", Description: "Show the currently playing song", Handler: displayNowPlaying(chat, player)},
		{Name: "queue", Description: "Display the song queue on-screen"},
	}
	for _, c := range commands {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func requestSong(chat Sayer, player Player) Handler {
	return HandlerFunc(func(ctx context.Context, req Request) {
		user := req.User.DisplayName
		searchText := strings.Join(req.Args, " ")

		var (
			track playback.Track
			err   error
		)
		if searchText == "" {
			err = playback.ErrNotFound
		} else {
			track, err = player.FindTrack(ctx, searchText)
		}

		switch {
		case err == nil:
			chat.Say(req.Channel, user+", added "+track.String()+".")
			player.Enqueue(track)
		case errors.Is(err, playback.ErrNotFound):
			chat.Say(req.Channel, user+", "+playback.ErrNotFound.Error()+".")
		default:
			logger.ErrorF("Error occured while requesting %q for %s, details: %v", searchText, user, err)
			chat.Say(req.Channel, user+", there was an error processing your request.")
		}
	})
}

func displayHelp(r *Router, chat Sayer) Handler {
	return HandlerFunc(func(_ context.Context, req Request) {
		var parts []string
		for _, c := range r.Commands() {
			parts = append(parts, Prefix+c.Name+" ("+c.Description+")")
		}
		chat.Say(req.Channel, "Commands: "+strings.Join(parts, ", "))
	})
}

func displayNext(chat Sayer, player Player) Handler {
	return HandlerFunc(func(_ context.Context, req Request) {
		if next, ok := player.Head(); ok {
			chat.Say(req.Channel, "Next song: "+next.String())
			return
		}
		chat.Say(req.Channel, "No songs are queued.")
	})
}

func displayNowPlaying(chat Sayer, player Player) Handler {
	return HandlerFunc(func(_ context.Context, req Request) {
		now := player.NowPlaying()
		if now == nil || now.CurrentTrack == nil {
			chat.Say(req.Channel, "No song currently playing")
			return
		}
		chat.Say(req.Channel, "Now playing "+now.CurrentTrack.String())
	})
}
