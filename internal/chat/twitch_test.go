package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/gempir/go-twitch-irc/v4"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIRC struct {
	mu        sync.Mutex
	joined    []string
	said      []string
	onMessage func(twitch.PrivateMessage)
	stop      chan struct{}
	connects  int
}

func newFakeIRC() *fakeIRC {
	return &fakeIRC{stop: make(chan struct{})}
}

func (f *fakeIRC) Join(channels ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, channels...)
}

func (f *fakeIRC) OnPrivateMessage(callback func(twitch.PrivateMessage)) { f.onMessage = callback }
func (f *fakeIRC) OnConnect(func())                                     {}

func (f *fakeIRC) Connect() error {
	f.mu.Lock()
	f.connects++
	f.mu.Unlock()
	<-f.stop
	return twitch.ErrClientDisconnected
}

func (f *fakeIRC) Disconnect() error {
	close(f.stop)
	return nil
}

func (f *fakeIRC) Say(channel, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, channel+": "+text)
}

func privmsg(user, display, text string) twitch.PrivateMessage {
	return twitch.PrivateMessage{
		User:    twitch.User{Name: user, DisplayName: display},
		Channel: "streamer",
		Message: text,
	}
}

func TestCommandsAreForwarded(t *testing.T) {
	irc := newFakeIRC()
	tw := newTwitch(irc, "SongBot", []string{"streamer"})

	var got []command.Message
	tw.OnCommand(func(m command.Message) { got = append(got, m) })

	irc.onMessage(privmsg("bob", "Bob", "!song foo"))
	irc.onMessage(privmsg("alice", "", "!next"))
	irc.onMessage(privmsg("bob", "Bob", "just chatting"))
	irc.onMessage(privmsg("songbot", "SongBot", "!song echo"))

	require.Len(t, got, 2)
	assert.Equal(t, command.Message{Channel: "streamer", User: command.User{Name: "bob", DisplayName: "Bob"}, Text: "!song foo"}, got[0])
	assert.Equal(t, "alice", got[1].User.DisplayName)
}

func TestSay(t *testing.T) {
	irc := newFakeIRC()
	tw := newTwitch(irc, "songbot", nil)
	tw.Say("#streamer", "hello")
	assert.Equal(t, []string{"streamer: hello"}, irc.said)

	anon := newFakeIRC()
	newTwitch(anon, "", nil).Say("streamer", "hello")
	assert.Empty(t, anon.said)
}

func TestConnectAndDisconnect(t *testing.T) {
	irc := newFakeIRC()
	tw := newTwitch(irc, "songbot", []string{"a", "b"})

	tw.Connect()
	tw.Connect()
	require.Eventually(t, func() bool {
		irc.mu.Lock()
		defer irc.mu.Unlock()
		return irc.connects == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, irc.joined)

	tw.Disconnect()
	require.Eventually(t, func() bool {
		tw.mu.Lock()
		defer tw.mu.Unlock()
		return !tw.running
	}, time.Second, 5*time.Millisecond)
	tw.Disconnect()
}
