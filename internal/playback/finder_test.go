package playback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindTrackPrefersBestMatch(t *testing.T) {
	caller := &fakeCaller{results: `{
		"bestMatch": {"type": "track", "value": {"title": "Best", "artist": "Match"}},
		"tracks": [{"title": "First", "artist": "Listed"}]
	}`}
	r := NewReconciler(caller, nil, Options{})

	track, err := r.FindTrack(context.Background(), "best match")
	require.NoError(t, err)
	assert.Equal(t, "Best", track.Title)

	calls := caller.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, methodSearch, calls[0].Method)
	assert.Equal(t, []any{"best match"}, calls[0].Args)
	assert.Equal(t, methodResults, calls[1].Method)
	assert.Nil(t, calls[1].Args)
}

func TestFindTrackFallsBackToFirstTrack(t *testing.T) {
	caller := &fakeCaller{results: `{
		"bestMatch": {"type": "album", "value": {"name": "An Album"}},
		"tracks": [{"title": "First", "artist": "Listed"}, {"title": "Second", "artist": "Listed"}]
	}`}
	r := NewReconciler(caller, nil, Options{})

	track, err := r.FindTrack(context.Background(), "album")
	require.NoError(t, err)
	assert.Equal(t, "First", track.Title)
}

func TestFindTrackNotFound(t *testing.T) {
	for name, results := range map[string]string{
		"empty tracks":   `{"bestMatch": null, "tracks": []}`,
		"no fields":      `{}`,
		"album only":     `{"bestMatch": {"type": "album", "value": {}}}`,
		"null first hit": `{"tracks": [null]}`,
	} {
		t.Run(name, func(t *testing.T) {
			caller := &fakeCaller{results: results}
			r := NewReconciler(caller, nil, Options{})

			_, err := r.FindTrack(context.Background(), "xyz")
			require.ErrorIs(t, err, ErrNotFound)
			assert.Equal(t, "failed to find a match", err.Error())
			r.Wait()
			assert.Zero(t, caller.count(methodPlayNext))
		})
	}
}

func TestFindTrackPropagatesCallErrors(t *testing.T) {
	caller := &fakeCaller{errs: map[string]error{methodSearch: remote.ErrTimeout}}
	r := NewReconciler(caller, nil, Options{})

	_, err := r.FindTrack(context.Background(), "anything")
	require.ErrorIs(t, err, remote.ErrTimeout)
	assert.Equal(t, 1, len(caller.recorded()), "results are not fetched after a failed search")

	caller = &fakeCaller{errs: map[string]error{methodResults: &remote.RemoteError{Method: methodResults}}}
	r = NewReconciler(caller, nil, Options{})
	_, err = r.FindTrack(context.Background(), "anything")
	var remoteErr *remote.RemoteError
	require.True(t, errors.As(err, &remoteErr))

	caller = &fakeCaller{results: `[1, 2]`}
	r = NewReconciler(caller, nil, Options{})
	_, err = r.FindTrack(context.Background(), "anything")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFindTrackCache(t *testing.T) {
	caller := &fakeCaller{results: `{"tracks": [{"title": "Cached", "artist": "Song"}]}`}
	r := NewReconciler(caller, nil, Options{CacheSize: 8, CacheTTL: time.Minute})

	_, err := r.FindTrack(context.Background(), "Cached Song")
	require.NoError(t, err)
	track, err := r.FindTrack(context.Background(), "  cached song ")
	require.NoError(t, err)
	assert.Equal(t, "Cached", track.Title)
	assert.Len(t, caller.recorded(), 2)

	uncached := &fakeCaller{results: `{"tracks": []}`}
	r = NewReconciler(uncached, nil, Options{CacheSize: 8, CacheTTL: time.Minute})
	_, _ = r.FindTrack(context.Background(), "missing")
	_, _ = r.FindTrack(context.Background(), "missing")
	assert.Len(t, uncached.recorded(), 4, "misses are not cached")
}

// singlePageCaller models a player that keeps one results page, replaced by
// every search.
type singlePageCaller struct {
	mu      sync.Mutex
	page    string
	pending bool
	crossed bool
}

func (c *singlePageCaller) Call(_ context.Context, _, method string, args []any, _ time.Duration) (json.RawMessage, error) {
	c.mu.Lock()
	switch method {
	case methodSearch:
		if c.pending {
			c.crossed = true
		}
		c.pending = true
		text := args[0].(string)
		c.page = fmt.Sprintf(`{"tracks":[{"title":%q,"artist":"Artist"}]}`, text)
		c.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		return json.RawMessage(`null`), nil
	case methodResults:
		c.pending = false
		page := c.page
		c.mu.Unlock()
		return json.RawMessage(page), nil
	}
	c.mu.Unlock()
	return json.RawMessage(`null`), nil
}

func TestConcurrentSearchesKeepTheirOwnResults(t *testing.T) {
	caller := &singlePageCaller{}
	r := NewReconciler(caller, nil, Options{CacheSize: 8, CacheTTL: time.Minute})

	texts := []string{"alpha", "beta", "gamma", "delta"}
	found := make([]string, len(texts))
	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			track, err := r.FindTrack(context.Background(), text)
			assert.NoError(t, err)
			found[i] = track.Title
		}()
	}
	wg.Wait()

	assert.Equal(t, texts, found)
	assert.False(t, caller.crossed, "a search started before the previous results were fetched")

	for _, text := range texts {
		track, err := r.FindTrack(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, text, track.Title)
	}
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "now_playing.txt")
	sink := FileSink{Path: path}

	require.NoError(t, sink.Write("Song A by Artist A"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Song A by Artist A", string(data))

	require.NoError(t, sink.Write(""))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}
