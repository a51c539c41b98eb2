// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package camera

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	cam     *fakeCamera
	decodes chan string
	once    sync.Once
	closes  int
}

func (s *fakeStream) Decodes() <-chan string { return s.decodes }

func (s *fakeStream) Close() error {
	s.cam.mu.Lock()
	defer s.cam.mu.Unlock()
	s.closes++
	s.once.Do(func() {
		s.cam.live--
		close(s.decodes)
	})
	return nil
}

type fakeCamera struct {
	mu      sync.Mutex
	opens   int
	live    int
	err     error
	gate    chan struct{}
	streams []*fakeStream
}

func (c *fakeCamera) Open(ctx context.Context) (Stream, error) {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.opens++
	c.live++
	st := &fakeStream{cam: c, decodes: make(chan string, 1)}
	c.streams = append(c.streams, st)
	return st, nil
}

func (c *fakeCamera) last() *fakeStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams[len(c.streams)-1]
}

func (c *fakeCamera) counts() (opens, live int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens, c.live
}

func newTestSession(cam Camera) *Session {
	return NewSession(cam, Config{Cooldown: -1})
}

func waitForState(t *testing.T, s *Session, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want },
		time.Second, 5*time.Millisecond, "session never reached %s", want)
}

func TestSession_StartActivates(t *testing.T) {
	cam := &fakeCamera{}
	s := newTestSession(cam)

	hits, err := s.Start(context.Background())
	require.NoError(t, err)
	require.NotNil(t, hits)
	assert.Equal(t, StateActive, s.State())

	opens, live := cam.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, live)
}

func TestSession_StartWhileActiveKeepsSingleHandle(t *testing.T) {
	cam := &fakeCamera{}
	s := newTestSession(cam)

	first, err := s.Start(context.Background())
	require.NoError(t, err)
	second, err := s.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	opens, live := cam.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, live)
}

func TestSession_ConcurrentStartsShareOneOpen(t *testing.T) {
	cam := &fakeCamera{gate: make(chan struct{})}
	s := newTestSession(cam)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Start(context.Background())
			errs <- err
		}()
	}

	waitForState(t, s, StateStarting)
	close(cam.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	opens, live := cam.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, live)
	assert.Equal(t, StateActive, s.State())
}

func TestSession_DoubleStop(t *testing.T) {
	cam := &fakeCamera{}
	s := newTestSession(cam)

	_, err := s.Start(context.Background())
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		s.Stop()
		s.Stop()
	})

	assert.Equal(t, StateIdle, s.State())
	_, live := cam.counts()
	assert.Equal(t, 0, live)
	assert.Equal(t, 1, cam.last().closes)
}

func TestSession_ConcurrentStopsReleaseOnce(t *testing.T) {
	cam := &fakeCamera{}
	s := newTestSession(cam)

	_, err := s.Start(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Stop()
		}()
	}
	wg.Wait()

	waitForState(t, s, StateIdle)
	assert.Equal(t, 1, cam.last().closes)
	_, live := cam.counts()
	assert.Equal(t, 0, live)
}

func TestSession_StopWhenIdle(t *testing.T) {
	s := newTestSession(&fakeCamera{})

	assert.NotPanics(t, s.Stop)
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_DecodeIsSingleShot(t *testing.T) {
	cam := &fakeCamera{}
	s := newTestSession(cam)

	hits, err := s.Start(context.Background())
	require.NoError(t, err)

	st := cam.last()
	st.decodes <- `{"visitorCode":"VK-1"}`

	select {
	case text := <-hits:
		assert.Equal(t, `{"visitorCode":"VK-1"}`, text)
	case <-time.After(time.Second):
		t.Fatal("decode was not delivered")
	}

	// the cycle is over: channel closed, camera released
	_, open := <-hits
	assert.False(t, open)
	assert.Equal(t, StateIdle, s.State())
	_, live := cam.counts()
	assert.Equal(t, 0, live)
}

func TestSession_StopClosesHits(t *testing.T) {
	s := newTestSession(&fakeCamera{})

	hits, err := s.Start(context.Background())
	require.NoError(t, err)

	s.Stop()

	select {
	case _, open := <-hits:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("hits channel not closed after stop")
	}
}

func TestSession_PermissionDenied(t *testing.T) {
	cam := &fakeCamera{err: ErrPermissionDenied}
	s := newTestSession(cam)

	_, err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, StateError, s.State())
	assert.ErrorIs(t, s.Err(), ErrPermissionDenied)

	s.Stop()
	assert.Equal(t, StateIdle, s.State())
	assert.NoError(t, s.Err())
}

func TestSession_OpenFailureIsDeviceUnavailable(t *testing.T) {
	cam := &fakeCamera{err: errors.New("no video input")}
	s := newTestSession(cam)

	_, err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Contains(t, err.Error(), "no video input")
	assert.Equal(t, StateError, s.State())
}

func TestSession_StopDuringStartDiscardsOpen(t *testing.T) {
	cam := &fakeCamera{gate: make(chan struct{})}
	s := newTestSession(cam)

	result := make(chan error, 1)
	go func() {
		_, err := s.Start(context.Background())
		result <- err
	}()

	waitForState(t, s, StateStarting)
	s.Stop()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("start did not return after stop")
	}
	assert.Equal(t, StateIdle, s.State())
	_, live := cam.counts()
	assert.Equal(t, 0, live)
}

func TestSession_StreamLostMovesToError(t *testing.T) {
	cam := &fakeCamera{}
	s := newTestSession(cam)

	hits, err := s.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, cam.last().Close())

	_, open := <-hits
	assert.False(t, open)
	waitForState(t, s, StateError)
	assert.ErrorIs(t, s.Err(), ErrDeviceUnavailable)

	// a new cycle can be started after the failure
	_, err = s.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateActive, s.State())
}

func TestSession_RestartWaitsForCooldown(t *testing.T) {
	cam := &fakeCamera{}
	cooldown := 60 * time.Millisecond
	s := NewSession(cam, Config{Cooldown: cooldown})

	_, err := s.Start(context.Background())
	require.NoError(t, err)

	begin := time.Now()
	_, err = s.Restart(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(begin), cooldown)
	assert.Equal(t, StateActive, s.State())
	opens, live := cam.counts()
	assert.Equal(t, 2, opens)
	assert.Equal(t, 1, live)
}

func TestSession_StartHonorsContextDuringCooldown(t *testing.T) {
	cam := &fakeCamera{}
	s := NewSession(cam, Config{Cooldown: time.Minute})

	_, err := s.Start(context.Background())
	require.NoError(t, err)
	s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = s.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_StopDuringCooldownCancelsStart(t *testing.T) {
	cam := &fakeCamera{}
	s := NewSession(cam, Config{Cooldown: 200 * time.Millisecond})

	_, err := s.Start(context.Background())
	require.NoError(t, err)
	s.Stop()

	errs := make(chan error, 1)
	go func() {
		_, err := s.Start(context.Background())
		errs <- err
	}()

	time.Sleep(50 * time.Millisecond)
	s.Stop()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("start never returned")
	}
	assert.Equal(t, StateIdle, s.State())
	opens, live := cam.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 0, live)

	// a fresh start after the stop still works
	_, err = s.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateActive, s.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "error", StateError.String())
	assert.Equal(t, "unknown", State(42).String())
}
