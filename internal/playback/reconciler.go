package playback

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/logger"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/remote"
)

// Caller is the part of the remote session the reconciler needs.
type Caller interface {
	Call(ctx context.Context, namespace, method string, args []any, timeout time.Duration) (json.RawMessage, error)
}

type Options struct {
	// CacheSize of 0 disables the search cache.
	CacheSize int
	CacheTTL  time.Duration
}

// Reconciler owns the request queue and the playback projection. The queue
// only advances when the player reports the head as the current track.
type Reconciler struct {
	caller Caller
	sink   Sink
	cache  *expirable.LRU[string, Track]

	// the player keeps a single results page, so a search and the results
	// fetch that follows it must not interleave with another search.
	searchMu sync.Mutex

	mu      sync.Mutex
	queue   []Track
	current *Track
	playing bool

	wg sync.WaitGroup
}

func NewReconciler(caller Caller, sink Sink, opts Options) *Reconciler {
	if sink == nil {
		sink = NopSink{}
	}
	r := &Reconciler{caller: caller, sink: sink}
	if opts.CacheSize > 0 {
		r.cache = expirable.NewLRU[string, Track](opts.CacheSize, nil, opts.CacheTTL)
	}
	return r
}

// Enqueue appends track. A track landing on an empty queue is requested
// as the player's next track straight away.
func (r *Reconciler) Enqueue(track Track) {
	r.mu.Lock()
	wasEmpty := len(r.queue) == 0
	r.queue = append(r.queue, track)
	r.mu.Unlock()

	logger.InfoF("Queued: %s", track)
	// play next is sent even while something else plays; the player queues it after the current track.
	if wasEmpty {
		r.background(func(ctx context.Context) {
			r.playNext(ctx, track)
		})
	}
}

// HandleNotification routes player notifications by channel.
func (r *Reconciler) HandleNotification(n remote.Notification) {
	switch n.Channel {
	case remote.ChannelTrack:
		track, err := DecodeTrack(n.Payload)
		if err != nil {
			logger.WarnF("Dropping track notification: %v, details: %v", remote.ErrMalformedMessage, err)
			return
		}
		r.OnTrackChanged(track)
	case remote.ChannelPlayState:
		var playing bool
		if err := json.Unmarshal(n.Payload, &playing); err != nil {
			logger.WarnF("Dropping play state notification: %v, details: %v", remote.ErrMalformedMessage, err)
			return
		}
		r.OnPlayStateChanged(playing)
	default:
		logger.DebugF("Ignoring %s notification", n.Channel)
	}
}

// OnTrackChanged records the current track and pops the head when it matches.
func (r *Reconciler) OnTrackChanged(track Track) {
	r.mu.Lock()
	current := track
	r.current = &current
	playing := r.playing

	var next *Track
	if len(r.queue) > 0 && r.queue[0].Matches(track) {
		r.queue[0] = Track{}
		r.queue = r.queue[1:]
		logger.InfoF("Now playing queued track %s, %d left", track, len(r.queue))
		if len(r.queue) > 0 {
			head := r.queue[0]
			next = &head
		}
	}
	r.mu.Unlock()

	if playing {
		r.writeNowPlaying(track)
	}
	if next != nil {
		head := *next
		r.background(func(ctx context.Context) {
			r.playNextByText(ctx, head)
		})
	}
}

func (r *Reconciler) OnPlayStateChanged(playing bool) {
	r.mu.Lock()
	r.playing = playing
	current := r.current
	r.mu.Unlock()

	if !playing {
		r.write("")
		return
	}
	if current != nil {
		r.writeNowPlaying(*current)
	}
}

func (r *Reconciler) writeNowPlaying(track Track) {
	if track.Title == "" || track.Artist == "" {
		return
	}
	r.write(track.String())
}

func (r *Reconciler) write(text string) {
	if err := r.sink.Write(text); err != nil {
		logger.ErrorF("Error occured while writing now playing, details: %v", err)
	}
}

func (r *Reconciler) playNext(ctx context.Context, track Track) {
	if _, err := r.caller.Call(ctx, namespaceSearch, methodPlayNext, []any{track.remote()}, 0); err != nil {
		logger.WarnF("Play next for %s failed, details: %v", track, err)
	}
}

// playNextByText looks the head up again because the player needs its own
// current track object.
func (r *Reconciler) playNextByText(ctx context.Context, head Track) {
	found, err := r.FindTrack(ctx, head.Title+" "+head.Artist)
	if err != nil {
		logger.WarnF("Could not find next queued track %s, details: %v", head, err)
		return
	}
	r.playNext(ctx, found)
}

func (r *Reconciler) background(fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn(context.Background())
	}()
}

// Wait blocks until remote work started by Enqueue and notifications is done.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

func (r *Reconciler) Queue() []Track {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Track, len(r.queue))
	copy(out, r.queue)
	return out
}

func (r *Reconciler) Head() (Track, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return Track{}, false
	}
	return r.queue[0], true
}

func (r *Reconciler) Projection() Projection {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := Projection{IsPlaying: r.playing}
	if r.current != nil {
		current := *r.current
		p.CurrentTrack = &current
	}
	return p
}

// NowPlaying returns nil unless a known track is playing.
func (r *Reconciler) NowPlaying() *Projection {
	p := r.Projection()
	if !p.IsPlaying || p.CurrentTrack == nil {
		return nil
	}
	return &p
}
