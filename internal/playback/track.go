// Package playback keeps the local request queue in step with what the
// remote player reports as playing.
package playback

import (
	"encoding/json"
	"strings"
)

// Track is a song as far as queue reconciliation is concerned. The player's
// full object is kept so it can be handed back for "play next".
type Track struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`

	raw json.RawMessage
}

func NewTrack(title, artist string) Track {
	return Track{Title: title, Artist: artist}
}

// DecodeTrack reads a track object from the player, keeping the original bytes.
func DecodeTrack(data json.RawMessage) (Track, error) {
	var t Track
	if err := json.Unmarshal(data, &t); err != nil {
		return Track{}, err
	}
	t.raw = append(json.RawMessage(nil), data...)
	return t, nil
}

// Matches compares title and artist after lowercasing both sides.
func (t Track) Matches(other Track) bool {
	return strings.ToLower(t.Title) == strings.ToLower(other.Title) &&
		strings.ToLower(t.Artist) == strings.ToLower(other.Artist)
}

func (t Track) IsZero() bool {
	return t.Title == "" && t.Artist == ""
}

func (t Track) String() string {
	return t.Title + " by " + t.Artist
}

// remote is the argument sent back to the player.
func (t Track) remote() any {
	if len(t.raw) > 0 {
		return t.raw
	}
	return map[string]string{"title": t.Title, "artist": t.Artist}
}

// Projection is the last known player state.
type Projection struct {
	CurrentTrack *Track `json:"currentTrack"`
	IsPlaying    bool   `json:"isPlaying"`
}
