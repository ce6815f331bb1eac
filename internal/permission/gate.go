// internal/permission/gate.go
package permission

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Capability int

const (
	Camera Capability = iota
	MediaLibrary
)

func (c Capability) String() string {
	switch c {
	case Camera:
		return "camera"
	case MediaLibrary:
		return "media library"
	default:
		return "unknown"
	}
}

type State int

const (
	Unknown State = iota
	Granted
	Denied
)

func (s State) String() string {
	switch s {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Requester asks the host for one capability.
type Requester interface {
	RequestPermission(ctx context.Context) (bool, error)
}

// Notice explains to the user why a feature is degraded.
type Notice struct {
	Capability Capability
	Message    string
}

var deniedMessages = map[Capability]string{
	Camera:       "Camera access denied: photo and video capture are unavailable. Press p to re-check.",
	MediaLibrary: "Media library access denied: the gallery is empty and captures will not be saved. Press p to re-check.",
}

// Gate resolves and caches capability authorization. Resolution always
// ends in Granted or Denied; a host that errors or does not answer before
// the timeout counts as Denied.
type Gate struct {
	requesters map[Capability]Requester
	timeout    time.Duration

	mu      sync.RWMutex
	states  map[Capability]State
	notices chan Notice
}

func NewGate(camera, library Requester, timeout time.Duration) *Gate {
	return &Gate{
		requesters: map[Capability]Requester{
			Camera:       camera,
			MediaLibrary: library,
		},
		timeout: timeout,
		states: map[Capability]State{
			Camera:       Unknown,
			MediaLibrary: Unknown,
		},
		notices: make(chan Notice, 8),
	}
}

// Notices delivers a notice each time a capability resolves to Denied.
func (g *Gate) Notices() <-chan Notice {
	return g.notices
}

// State returns the cached state; Unknown until the first resolution.
func (g *Gate) State(c Capability) State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.states[c]
}

// Resolve asks the host for c and caches the answer. It is safe to call
// again later to pick up a change the user made outside the app.
func (g *Gate) Resolve(ctx context.Context, c Capability) State {
	state := g.request(ctx, c)

	g.mu.Lock()
	g.states[c] = state
	g.mu.Unlock()

	log.Info().Str("capability", c.String()).Str("state", state.String()).Msg("Permission resolved")
	if state == Denied {
		g.publish(Notice{Capability: c, Message: deniedMessages[c]})
	}
	return state
}

// Recheck is Resolve under the name the screen offers the user.
func (g *Gate) Recheck(ctx context.Context, c Capability) State {
	return g.Resolve(ctx, c)
}

// ResolveAll resolves every capability concurrently.
func (g *Gate) ResolveAll(ctx context.Context) map[Capability]State {
	var (
		mu  sync.Mutex
		out = make(map[Capability]State, len(g.requesters))
	)
	eg, ctx := errgroup.WithContext(ctx)
	for c := range g.requesters {
		eg.Go(func() error {
			state := g.Resolve(ctx, c)
			mu.Lock()
			out[c] = state
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

func (g *Gate) request(ctx context.Context, c Capability) State {
	req := g.requesters[c]
	if req == nil {
		return Denied
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	type answer struct {
		ok  bool
		err error
	}
	done := make(chan answer, 1)
	go func() {
		ok, err := req.RequestPermission(ctx)
		done <- answer{ok, err}
	}()

	select {
	case a := <-done:
		if a.err != nil {
			log.Error().Err(a.err).Str("capability", c.String()).Msg("Permission service unreachable, treating as denied")
			return Denied
		}
		if a.ok {
			return Granted
		}
		return Denied
	case <-ctx.Done():
		log.Error().Err(ctx.Err()).Str("capability", c.String()).Msg("Permission request timed out, treating as denied")
		return Denied
	}
}

func (g *Gate) publish(n Notice) {
	select {
	case g.notices <- n:
	default:
		log.Warn().Str("capability", n.Capability.String()).Msg("Dropping permission notice, no reader")
	}
}
