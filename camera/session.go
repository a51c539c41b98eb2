// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCooldown is how long a released camera rests before it is reopened
const DefaultCooldown = 300 * time.Millisecond

const startKey = "start"

type Config struct {
	// Cooldown between releasing the camera and opening it again.
	// Zero uses DefaultCooldown, a negative value disables the wait.
	Cooldown time.Duration
	Logger   *slog.Logger
}

// Session owns at most one camera stream and delivers one decode per cycle.
//
// Every Start and Stop bumps a generation counter, even a Stop with nothing
// to release; a start that is still cooling down or opening when a newer
// call arrives fails with ErrSuperseded and holds nothing.
type Session struct {
	cam      Camera
	cooldown time.Duration
	log      *slog.Logger

	starts singleflight.Group

	mu         sync.Mutex
	state      State
	gen        uint64
	lastErr    error
	stream     Stream
	quit       chan struct{}
	hits       chan string
	cancelOpen context.CancelFunc
	opening    chan struct{}
	stopping   bool
	stopDone   chan struct{}
	releasedAt time.Time
}

func NewSession(cam Camera, cfg Config) *Session {
	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = DefaultCooldown
	}
	if cooldown < 0 {
		cooldown = 0
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Session{cam: cam, cooldown: cooldown, log: log}
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that put the session in StateError, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Start opens the camera and returns a channel that yields at most one
// decoded text before closing. Concurrent calls share one open; a call while
// active returns the running cycle without opening a second handle.
func (s *Session) Start(ctx context.Context) (<-chan string, error) {
	s.mu.Lock()
	seen := s.gen
	s.mu.Unlock()

	v, err, shared := s.starts.Do(startKey, func() (any, error) {
		return s.start(ctx, seen)
	})
	if shared {
		s.log.Debug("camera start joined in-flight start")
	}
	if err != nil {
		return nil, err
	}
	return v.(<-chan string), nil
}

// Stop releases the camera. It is safe from any state; while another stop
// is in flight it returns at once.
func (s *Session) Stop() {
	s.halt(0)
}

// Restart stops the session and starts a new cycle once the cooldown since
// the release has passed.
func (s *Session) Restart(ctx context.Context) (<-chan string, error) {
	s.Stop()
	return s.Start(ctx)
}

func (s *Session) start(ctx context.Context, seen uint64) (<-chan string, error) {
	if err := s.settle(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state == StateActive {
		hits := s.hits
		s.mu.Unlock()
		return hits, nil
	}
	if s.gen != seen {
		s.mu.Unlock()
		return nil, ErrSuperseded
	}

	s.gen++
	gen := s.gen
	openCtx, cancel := context.WithCancel(ctx)
	opening := make(chan struct{})
	s.state = StateStarting
	s.lastErr = nil
	s.cancelOpen = cancel
	s.opening = opening
	s.mu.Unlock()

	stream, err := s.cam.Open(openCtx)

	s.mu.Lock()
	close(opening)
	if s.opening == opening {
		s.opening = nil
	}

	if gen != s.gen {
		s.mu.Unlock()
		cancel()
		if err == nil {
			s.closeStream(stream)
		}
		s.log.Info("discarded superseded camera open")
		return nil, ErrSuperseded
	}

	if err != nil {
		cancel()
		s.cancelOpen = nil
		s.state = StateError
		s.lastErr = openError(err)
		failure := s.lastErr
		s.mu.Unlock()
		s.log.Warn("camera start failed", "error", failure)
		return nil, failure
	}

	quit := make(chan struct{})
	hits := make(chan string, 1)
	s.state = StateActive
	s.stream = stream
	s.quit = quit
	s.hits = hits
	s.mu.Unlock()

	s.log.Info("camera active")
	go s.watch(gen, stream, quit, hits)
	return hits, nil
}

// settle waits out an in-flight stop and the post-release cooldown
func (s *Session) settle(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.state == StateActive {
			s.mu.Unlock()
			return nil
		}
		if s.stopping {
			done := s.stopDone
			s.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		var wait time.Duration
		if !s.releasedAt.IsZero() {
			wait = s.cooldown - time.Since(s.releasedAt)
		}
		s.mu.Unlock()

		if wait <= 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// halt ends the current cycle. With a non-zero expect it only halts if that
// generation is still current. Reports whether this call did the stopping.
func (s *Session) halt(expect uint64) bool {
	s.mu.Lock()
	if expect != 0 && expect != s.gen {
		s.mu.Unlock()
		return false
	}
	if s.stopping || s.state == StateIdle {
		// nothing to release, but a start waiting out the cooldown must
		// see that it has been overtaken
		s.gen++
		s.starts.Forget(startKey)
		s.mu.Unlock()
		return false
	}

	s.gen++
	s.stopping = true
	s.stopDone = make(chan struct{})
	s.state = StateStopping
	stream, quit, cancel, opening := s.stream, s.quit, s.cancelOpen, s.opening
	s.stream, s.quit, s.hits, s.cancelOpen = nil, nil, nil, nil
	s.starts.Forget(startKey)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	// an open still in flight sees the bumped generation and closes its own stream
	if opening != nil {
		<-opening
	}
	if quit != nil {
		close(quit)
	}
	released := stream != nil
	if released {
		s.closeStream(stream)
	}

	s.mu.Lock()
	s.state = StateIdle
	s.lastErr = nil
	s.stopping = false
	if released {
		s.releasedAt = time.Now()
	}
	close(s.stopDone)
	s.mu.Unlock()

	if released {
		s.log.Info("camera released")
	}
	return true
}

// fail moves an active cycle to StateError and releases its stream
func (s *Session) fail(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen || s.stopping {
		s.mu.Unlock()
		return
	}
	stream, cancel := s.stream, s.cancelOpen
	s.stream, s.quit, s.hits, s.cancelOpen = nil, nil, nil, nil
	s.state = StateError
	s.lastErr = err
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		s.closeStream(stream)
	}

	s.mu.Lock()
	s.releasedAt = time.Now()
	s.mu.Unlock()

	s.log.Warn("camera stream lost", "error", err)
}

func (s *Session) watch(gen uint64, stream Stream, quit <-chan struct{}, hits chan<- string) {
	defer close(hits)

	select {
	case <-quit:
		return
	case text, ok := <-stream.Decodes():
		if !ok {
			s.fail(gen, fmt.Errorf("%w: stream ended", ErrDeviceUnavailable))
			return
		}
		// single shot: release the camera before handing the text over
		if !s.halt(gen) {
			return
		}
		hits <- text
	}
}

func (s *Session) closeStream(stream Stream) {
	if err := stream.Close(); err != nil {
		s.log.Warn("failed to close camera stream", "error", err)
	}
}

func openError(err error) error {
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}
