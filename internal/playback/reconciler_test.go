package playback

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Namespace string
	Method    string
	Args      []any
}

// fakeCaller answers getCurrentResults with results and everything else with null.
type fakeCaller struct {
	mu      sync.Mutex
	calls   []recordedCall
	results string
	errs    map[string]error
}

func (f *fakeCaller) Call(_ context.Context, namespace, method string, args []any, _ time.Duration) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{Namespace: namespace, Method: method, Args: args})
	if err := f.errs[method]; err != nil {
		return nil, err
	}
	if method == methodResults {
		return json.RawMessage(f.results), nil
	}
	return json.RawMessage(`null`), nil
}

func (f *fakeCaller) recorded() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func (f *fakeCaller) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeCaller) count(method string) int {
	n := 0
	for _, c := range f.recorded() {
		if c.Method == method {
			n++
		}
	}
	return n
}

type memorySink struct {
	mu     sync.Mutex
	writes []string
}

func (m *memorySink) Write(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, text)
	return nil
}

func (m *memorySink) all() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}

func mustTrack(t *testing.T, data string) Track {
	t.Helper()
	track, err := DecodeTrack(json.RawMessage(data))
	require.NoError(t, err)
	return track
}

func TestEnqueueOnEmptyQueuePlaysNext(t *testing.T) {
	caller := &fakeCaller{}
	r := NewReconciler(caller, nil, Options{})

	r.Enqueue(mustTrack(t, `{"title":"Song A","artist":"Artist A","id":"a1"}`))
	r.Wait()

	calls := caller.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0].Namespace)
	assert.Equal(t, "playTrackNext", calls[0].Method)
	require.Len(t, calls[0].Args, 1)
	sent, err := json.Marshal(calls[0].Args[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Song A","artist":"Artist A","id":"a1"}`, string(sent))
}

func TestEnqueueWhilePlayingStillPlaysNext(t *testing.T) {
	caller := &fakeCaller{}
	r := NewReconciler(caller, nil, Options{})
	r.OnTrackChanged(NewTrack("Other", "Someone"))
	r.OnPlayStateChanged(true)
	require.NotNil(t, r.NowPlaying())

	r.Enqueue(NewTrack("Song A", "Artist A"))
	r.Wait()
	assert.Equal(t, 1, caller.count(methodPlayNext))
}

func TestEnqueueOnNonEmptyQueueWaits(t *testing.T) {
	caller := &fakeCaller{}
	r := NewReconciler(caller, nil, Options{})

	r.Enqueue(NewTrack("Song A", "Artist A"))
	r.Wait()
	r.Enqueue(NewTrack("Song B", "Artist B"))
	r.Enqueue(NewTrack("Song C", "Artist C"))
	r.Wait()

	assert.Equal(t, 1, caller.count(methodPlayNext))
	queue := r.Queue()
	require.Len(t, queue, 3)
	assert.Equal(t, "Song A", queue[0].Title)
	assert.Equal(t, "Song C", queue[2].Title)
}

func TestMatchingTrackChangePopsHead(t *testing.T) {
	caller := &fakeCaller{}
	sink := &memorySink{}
	r := NewReconciler(caller, sink, Options{})

	r.OnPlayStateChanged(true)
	r.Enqueue(NewTrack("Song A", "Artist A"))
	r.Wait()
	require.Equal(t, 1, caller.count(methodPlayNext))
	caller.reset()

	r.OnTrackChanged(NewTrack("song a", "artist a"))
	r.Wait()

	assert.Empty(t, r.Queue())
	assert.Empty(t, caller.recorded())
	writes := sink.all()
	require.NotEmpty(t, writes)
	assert.True(t, strings.EqualFold("Song A by Artist A", writes[len(writes)-1]))
}

func TestMatchingTrackChangeRequestsNewHead(t *testing.T) {
	caller := &fakeCaller{results: `{"bestMatch":{"type":"track","value":{"title":"Song B","artist":"Artist B","id":"b1"}},"tracks":[]}`}
	r := NewReconciler(caller, nil, Options{})

	r.Enqueue(NewTrack("Song A", "Artist A"))
	r.Enqueue(NewTrack("Song B", "Artist B"))
	r.Wait()
	caller.reset()

	r.OnTrackChanged(NewTrack("SONG A", "ARTIST A"))
	r.Wait()

	queue := r.Queue()
	require.Len(t, queue, 1)
	assert.Equal(t, "Song B", queue[0].Title)

	calls := caller.recorded()
	require.Len(t, calls, 3)
	assert.Equal(t, methodSearch, calls[0].Method)
	assert.Equal(t, []any{"Song B Artist B"}, calls[0].Args)
	assert.Equal(t, methodResults, calls[1].Method)
	assert.Equal(t, methodPlayNext, calls[2].Method)
	sent, err := json.Marshal(calls[2].Args[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Song B","artist":"Artist B","id":"b1"}`, string(sent))
}

func TestMismatchedTrackChangePopsNothing(t *testing.T) {
	caller := &fakeCaller{}
	r := NewReconciler(caller, nil, Options{})

	r.Enqueue(NewTrack("Song A", "Artist A"))
	r.Enqueue(NewTrack("Song B", "Artist B"))
	r.Wait()
	caller.reset()

	r.OnTrackChanged(NewTrack("Song A", "Someone Else"))
	r.OnTrackChanged(NewTrack("Song B", "Artist B"))
	r.Wait()

	assert.Len(t, r.Queue(), 2)
	assert.Empty(t, caller.recorded())
	head, ok := r.Head()
	require.True(t, ok)
	assert.Equal(t, "Song A", head.Title)
}

func TestPlayStateDrivesSink(t *testing.T) {
	sink := &memorySink{}
	r := NewReconciler(&fakeCaller{}, sink, Options{})

	r.OnTrackChanged(NewTrack("Song A", "Artist A"))
	assert.Empty(t, sink.all(), "nothing is written while paused")
	assert.Nil(t, r.NowPlaying())

	r.OnPlayStateChanged(true)
	r.OnPlayStateChanged(false)
	r.OnPlayStateChanged(true)
	assert.Equal(t, []string{"Song A by Artist A", "", "Song A by Artist A"}, sink.all())

	now := r.NowPlaying()
	require.NotNil(t, now)
	assert.True(t, now.IsPlaying)
	assert.Equal(t, "Song A", now.CurrentTrack.Title)
}

func TestPlayStateWithoutTrackOnlyClears(t *testing.T) {
	sink := &memorySink{}
	r := NewReconciler(&fakeCaller{}, sink, Options{})

	r.OnPlayStateChanged(true)
	r.OnPlayStateChanged(false)
	assert.Equal(t, []string{""}, sink.all())
}

func TestEmptyTitleOrArtistSuppressesWrite(t *testing.T) {
	sink := &memorySink{}
	r := NewReconciler(&fakeCaller{}, sink, Options{})

	r.OnPlayStateChanged(true)
	r.OnTrackChanged(NewTrack("", "Artist A"))
	r.OnTrackChanged(NewTrack("Song A", ""))
	assert.Empty(t, sink.all())
}

func TestHandleNotification(t *testing.T) {
	sink := &memorySink{}
	r := NewReconciler(&fakeCaller{}, sink, Options{})

	r.HandleNotification(remote.Notification{Channel: remote.ChannelPlayState, Payload: json.RawMessage(`true`)})
	r.HandleNotification(remote.Notification{Channel: remote.ChannelTrack, Payload: json.RawMessage(`{"title":"Song A","artist":"Artist A","albumArt":"x"}`)})
	r.HandleNotification(remote.Notification{Channel: remote.ChannelTrack, Payload: json.RawMessage(`"garbage"`)})
	r.HandleNotification(remote.Notification{Channel: remote.ChannelPlayState, Payload: json.RawMessage(`{}`)})
	r.HandleNotification(remote.Notification{Channel: "time", Payload: json.RawMessage(`{"current":3}`)})

	assert.Equal(t, []string{"Song A by Artist A"}, sink.all())
	p := r.Projection()
	assert.True(t, p.IsPlaying)
	require.NotNil(t, p.CurrentTrack)
	assert.Equal(t, "Artist A", p.CurrentTrack.Artist)
}

func TestProjectionSerializesWithoutRawObject(t *testing.T) {
	r := NewReconciler(&fakeCaller{}, nil, Options{})
	r.OnTrackChanged(mustTrack(t, `{"title":"Song A","artist":"Artist A","id":"a1"}`))
	r.OnPlayStateChanged(true)

	data, err := json.Marshal(r.NowPlaying())
	require.NoError(t, err)
	assert.JSONEq(t, `{"currentTrack":{"title":"Song A","artist":"Artist A"},"isPlaying":true}`, string(data))
}
