package playback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/logger"
)

const (
	namespaceSearch = "search"
	methodSearch    = "performSearch"
	methodResults   = "getCurrentResults"
	methodPlayNext  = "playTrackNext"
)

var ErrNotFound = errors.New("failed to find a match")

type searchResults struct {
	BestMatch *struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"bestMatch"`
	Tracks []json.RawMessage `json:"tracks"`
}

// pick prefers a best match of type track, then the first listed track.
func (r searchResults) pick() (Track, error) {
	var candidate json.RawMessage
	switch {
	case r.BestMatch != nil && r.BestMatch.Type == "track":
		candidate = r.BestMatch.Value
	case len(r.Tracks) > 0:
		candidate = r.Tracks[0]
	default:
		return Track{}, ErrNotFound
	}

	track, err := DecodeTrack(candidate)
	if err != nil {
		return Track{}, fmt.Errorf("error occured while decoding search result: %w", err)
	}
	if track.IsZero() {
		return Track{}, ErrNotFound
	}
	return track, nil
}

// FindTrack searches the player. The search call itself returns nothing
// useful, so the results are fetched with a second call.
func (r *Reconciler) FindTrack(ctx context.Context, searchText string) (Track, error) {
	key := strings.ToLower(strings.TrimSpace(searchText))
	if r.cache != nil {
		if track, ok := r.cache.Get(key); ok {
			logger.DebugF("Search cache hit for %q", searchText)
			return track, nil
		}
	}

	track, err := r.search(ctx, searchText)
	if err != nil {
		return Track{}, err
	}

	if r.cache != nil {
		r.cache.Add(key, track)
	}
	return track, nil
}

func (r *Reconciler) search(ctx context.Context, searchText string) (Track, error) {
	r.searchMu.Lock()
	defer r.searchMu.Unlock()

	if _, err := r.caller.Call(ctx, namespaceSearch, methodSearch, []any{searchText}, 0); err != nil {
		return Track{}, fmt.Errorf("search %q: %w", searchText, err)
	}
	raw, err := r.caller.Call(ctx, namespaceSearch, methodResults, nil, 0)
	if err != nil {
		return Track{}, fmt.Errorf("results for %q: %w", searchText, err)
	}

	var results searchResults
	if err := json.Unmarshal(raw, &results); err != nil {
		return Track{}, fmt.Errorf("error occured while decoding results for %q: %w", searchText, err)
	}
	return results.pick()
}
