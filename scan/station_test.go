// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/scanpoint/camera"
	"github.com/danielhkuo/scanpoint/checkin"
	"github.com/danielhkuo/scanpoint/classify"
	"github.com/danielhkuo/scanpoint/models"
)

const waitFor = time.Second

var testCheckpoint = models.Checkpoint{ID: "cp-1", Name: "Main Gate", EventName: "Expo"}

type submission struct {
	dir   checkin.Direction
	id    classify.Identifier
	cp    models.Checkpoint
	token string
}

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   []submission
	result  checkin.Result
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeSubmitter) Submit(ctx context.Context, dir checkin.Direction, id classify.Identifier, cp models.Checkpoint, token string) (checkin.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, submission{dir, id, cp, token})
	res, err := f.result, f.err
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return res, err
}

func (f *fakeSubmitter) Calls() []submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submission(nil), f.calls...)
}

type recordingObserver struct {
	mu        sync.Mutex
	starts    []error
	decodes   []error
	submitted []checkin.Result
}

func (o *recordingObserver) CameraStarted(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.starts = append(o.starts, err)
}

func (o *recordingObserver) Decoded(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decodes = append(o.decodes, err)
}

func (o *recordingObserver) Submitted(dir checkin.Direction, cp models.Checkpoint, res checkin.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.submitted = append(o.submitted, res)
}

func newTestStation(t *testing.T, sub Submitter, cfg Config) (*Station, *camera.FrameCamera) {
	t.Helper()
	if cfg.Cooldown == 0 {
		cfg.Cooldown = -1
	}
	cam := camera.NewFrameCamera()
	cam.SetPermission(camera.PermissionGranted)
	s := NewStation("station-1", cam, sub, cfg)
	s.SetCheckpoint(testCheckpoint)
	t.Cleanup(s.Close)
	return s, cam
}

func scanText(t *testing.T, s *Station, cam *camera.FrameCamera, text string, want Mode) {
	t.Helper()
	require.NoError(t, s.StartScanning(context.Background()))
	require.True(t, cam.Streaming())
	require.NoError(t, cam.PushText(text))
	require.Eventually(t, func() bool { return s.View().Mode == want }, waitFor, 5*time.Millisecond)
}

func TestStation_ScanConfirmAndSubmit(t *testing.T) {
	sub := &fakeSubmitter{result: checkin.Result{
		Outcome:  checkin.OutcomeSuccess,
		Message:  "Checked in",
		Severity: checkin.SeverityGreen,
	}}
	s, cam := newTestStation(t, sub, Config{})

	scanText(t, s, cam, `{"visitorCode":"VK-123"}`, ModeConfirm)

	v := s.View()
	assert.Equal(t, classify.Identifier{Kind: classify.KindCode, Value: "VK-123"}, v.Identifier)
	require.NotNil(t, v.Payload)
	assert.Equal(t, `{"visitorCode":"VK-123"}`, v.Payload.RawText)
	assert.Empty(t, v.Error)
	assert.Equal(t, camera.StateIdle, s.CameraState())
	assert.False(t, cam.Streaming())

	res, err := s.Submit(context.Background(), checkin.DirectionCheckin, "tok")
	require.NoError(t, err)
	assert.Equal(t, checkin.OutcomeSuccess, res.Outcome)

	calls := sub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, checkin.DirectionCheckin, calls[0].dir)
	assert.Equal(t, "VK-123", calls[0].id.Value)
	assert.Equal(t, testCheckpoint, calls[0].cp)
	assert.Equal(t, "tok", calls[0].token)

	v = s.View()
	assert.Equal(t, ModeResult, v.Mode)
	assert.True(t, v.Result.Visible)
	assert.Equal(t, "Checked in", v.Result.Message)
}

func TestStation_UnparseableDecodeGoesManual(t *testing.T) {
	sub := &fakeSubmitter{result: checkin.Result{Outcome: checkin.OutcomeSuccess}}
	s, cam := newTestStation(t, sub, Config{})

	scanText(t, s, cam, "not json", ModeManual)

	v := s.View()
	assert.Equal(t, "decode_unparseable", v.ErrorCode)
	assert.Empty(t, v.ManualInput)
	assert.Equal(t, classify.KindUnknown, v.Identifier.Kind)

	// the camera stays off until the operator asks again
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, camera.StateIdle, s.CameraState())
	assert.False(t, cam.Streaming())

	_, err := s.Submit(context.Background(), checkin.DirectionCheckin, "")
	assert.ErrorIs(t, err, checkin.ErrValidation)
	assert.Empty(t, sub.Calls())

	id := s.EditManual("vk-9")
	assert.Equal(t, classify.Identifier{Kind: classify.KindCode, Value: "VK-9"}, id)
	assert.Empty(t, s.View().Error)

	_, err = s.Submit(context.Background(), checkin.DirectionCheckin, "")
	require.NoError(t, err)
	require.Len(t, sub.Calls(), 1)
	assert.Equal(t, "VK-9", sub.Calls()[0].id.Value)
}

func TestStation_ManualEmail(t *testing.T) {
	sub := &fakeSubmitter{result: checkin.Result{Outcome: checkin.OutcomeSuccess, Severity: checkin.SeverityGreen}}
	s, _ := newTestStation(t, sub, Config{})

	id := s.EditManual("  Ann@Example.COM ")
	assert.Equal(t, classify.KindEmail, id.Kind)

	_, err := s.Submit(context.Background(), checkin.DirectionCheckout, "")
	require.NoError(t, err)

	calls := sub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, checkin.DirectionCheckout, calls[0].dir)
	assert.Equal(t, classify.Identifier{Kind: classify.KindEmail, Value: "ann@example.com"}, calls[0].id)
}

func TestStation_ManualInvalidInput(t *testing.T) {
	s, _ := newTestStation(t, &fakeSubmitter{}, Config{})

	s.EditManual("hello")
	assert.Equal(t, "validation_error", s.View().ErrorCode)

	// an empty field stays in manual mode
	s.EditManual("")
	v := s.View()
	assert.Equal(t, ModeManual, v.Mode)
	assert.Equal(t, classify.KindUnknown, v.Identifier.Kind)
}

func TestStation_ManualInputStopsScan(t *testing.T) {
	s, cam := newTestStation(t, &fakeSubmitter{}, Config{})

	require.NoError(t, s.StartScanning(context.Background()))
	require.True(t, cam.Streaming())

	s.EditManual("VK-4")

	assert.False(t, cam.Streaming())
	assert.Equal(t, camera.StateIdle, s.CameraState())
	assert.Equal(t, ModeManual, s.View().Mode)

	// a late push has nowhere to go
	assert.ErrorIs(t, cam.PushText(`{"visitorCode":"VK-5"}`), camera.ErrNotStreaming)
}

func TestStation_DeclineLeavesRetryOpen(t *testing.T) {
	sub := &fakeSubmitter{result: checkin.Result{
		Outcome:  checkin.OutcomeDecline,
		Message:  "Already checked out",
		Severity: checkin.SeverityRed,
		Err:      checkin.ErrServerDecline,
	}}
	s, _ := newTestStation(t, sub, Config{})
	s.EditManual("VK-1")

	res, err := s.Submit(context.Background(), checkin.DirectionCheckout, "")
	require.NoError(t, err)
	assert.Equal(t, checkin.OutcomeDecline, res.Outcome)

	v := s.View()
	assert.Equal(t, "server_decline", v.ErrorCode)
	assert.False(t, v.Submitting)
	assert.Equal(t, "Already checked out", v.Result.Message)

	_, err = s.Submit(context.Background(), checkin.DirectionCheckout, "")
	require.NoError(t, err)
	assert.Len(t, sub.Calls(), 2)
}

func TestStation_VIPOverlaySelfDismisses(t *testing.T) {
	sub := &fakeSubmitter{result: checkin.Result{
		Outcome:  checkin.OutcomeSuccess,
		Message:  "Welcome",
		Severity: checkin.SeverityGreen,
		VIP:      &checkin.VIP{Name: "Ada", Event: "Gala"},
	}}
	s, _ := newTestStation(t, sub, Config{VIPDuration: 30 * time.Millisecond})
	s.EditManual("VK-1")

	_, err := s.Submit(context.Background(), checkin.DirectionCheckin, "")
	require.NoError(t, err)
	require.True(t, s.VIPVisible())

	assert.Eventually(t, func() bool { return !s.VIPVisible() }, waitFor, 5*time.Millisecond)
	assert.Equal(t, ModeResult, s.View().Mode)
}

func TestStation_SubmitInFlight(t *testing.T) {
	sub := &fakeSubmitter{
		result:  checkin.Result{Outcome: checkin.OutcomeSuccess},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s, _ := newTestStation(t, sub, Config{})
	s.EditManual("VK-1")

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), checkin.DirectionCheckin, "")
		done <- err
	}()
	<-sub.started

	assert.True(t, s.View().Submitting)
	_, err := s.Submit(context.Background(), checkin.DirectionCheckin, "")
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	assert.ErrorIs(t, s.StartScanning(context.Background()), ErrSubmitInFlight)

	close(sub.release)
	require.NoError(t, <-done)
	assert.Len(t, sub.Calls(), 1)
	assert.False(t, s.View().Submitting)
}

func TestStation_SubmitWithoutCheckpoint(t *testing.T) {
	sub := &fakeSubmitter{}
	s, _ := newTestStation(t, sub, Config{})
	s.ClearCheckpoint()
	s.EditManual("VK-1")

	_, err := s.Submit(context.Background(), checkin.DirectionCheckin, "")
	assert.ErrorIs(t, err, ErrNoCheckpoint)
	assert.Empty(t, sub.Calls())

	_, ok := s.Checkpoint()
	assert.False(t, ok)
}

func TestStation_DismissResetsWithoutCamera(t *testing.T) {
	sub := &fakeSubmitter{result: checkin.Result{Outcome: checkin.OutcomeSuccess, Message: "ok"}}
	s, cam := newTestStation(t, sub, Config{})

	scanText(t, s, cam, `{"visitorCode":"VK-2"}`, ModeConfirm)
	_, err := s.Submit(context.Background(), checkin.DirectionCheckin, "")
	require.NoError(t, err)

	s.Dismiss()

	v := s.View()
	assert.Equal(t, ModeIdle, v.Mode)
	assert.Nil(t, v.Payload)
	assert.Equal(t, classify.KindUnknown, v.Identifier.Kind)
	assert.False(t, v.Result.Visible)
	assert.Equal(t, camera.StateIdle, s.CameraState())
	assert.False(t, cam.Streaming())

	// checkpoint survives the reset
	require.NotNil(t, v.Checkpoint)
	assert.Equal(t, testCheckpoint.ID, v.Checkpoint.ID)
}

func TestStation_PermissionDenied(t *testing.T) {
	obs := &recordingObserver{}
	s, cam := newTestStation(t, &fakeSubmitter{}, Config{Observer: obs})
	cam.SetPermission(camera.PermissionDenied)

	err := s.StartScanning(context.Background())
	assert.ErrorIs(t, err, camera.ErrPermissionDenied)

	v := s.View()
	assert.Equal(t, ModeIdle, v.Mode)
	assert.Equal(t, "permission_denied", v.ErrorCode)

	// granting permission lets the operator retry
	cam.SetPermission(camera.PermissionGranted)
	require.NoError(t, s.StartScanning(context.Background()))
	assert.Equal(t, ModeScanning, s.View().Mode)
	assert.Empty(t, s.View().Error)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.starts, 2)
	assert.ErrorIs(t, obs.starts[0], camera.ErrPermissionDenied)
	assert.NoError(t, obs.starts[1])
}

func TestStation_StopScanning(t *testing.T) {
	s, cam := newTestStation(t, &fakeSubmitter{}, Config{})

	require.NoError(t, s.StartScanning(context.Background()))
	s.StopScanning()

	assert.Equal(t, ModeIdle, s.View().Mode)
	assert.False(t, cam.Streaming())
	assert.Empty(t, s.View().Error)
}

func TestStation_StopDuringRescanCooldown(t *testing.T) {
	s, cam := newTestStation(t, &fakeSubmitter{}, Config{Cooldown: 300 * time.Millisecond})

	require.NoError(t, s.StartScanning(context.Background()))

	errs := make(chan error, 1)
	go func() { errs <- s.StartScanning(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	s.StopScanning()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, camera.ErrSuperseded)
	case <-time.After(waitFor):
		t.Fatal("rescan never returned")
	}
	assert.Equal(t, ModeIdle, s.View().Mode)
	assert.Equal(t, camera.StateIdle, s.CameraState())
	assert.False(t, cam.Streaming())
}

func TestStation_InvalidSubmitStopsScan(t *testing.T) {
	sub := &fakeSubmitter{}
	s, cam := newTestStation(t, sub, Config{})

	require.NoError(t, s.StartScanning(context.Background()))
	require.True(t, cam.Streaming())

	_, err := s.Submit(context.Background(), checkin.DirectionCheckin, "tok")
	assert.ErrorIs(t, err, checkin.ErrValidation)
	assert.Empty(t, sub.Calls())

	v := s.View()
	assert.Equal(t, ModeManual, v.Mode)
	assert.Equal(t, "validation_error", v.ErrorCode)
	assert.Equal(t, camera.StateIdle, s.CameraState())
	assert.False(t, cam.Streaming())

	// a late decode does not replace the manual screen
	assert.ErrorIs(t, cam.PushText(`{"visitorCode":"VK-5"}`), camera.ErrNotStreaming)
	assert.Equal(t, ModeManual, s.View().Mode)
}

func TestStation_RescanClearsPrevious(t *testing.T) {
	s, cam := newTestStation(t, &fakeSubmitter{}, Config{})

	scanText(t, s, cam, "not json", ModeManual)
	scanText(t, s, cam, `{"visitorCode":"VK-3"}`, ModeConfirm)

	v := s.View()
	assert.Empty(t, v.Error)
	assert.Equal(t, "VK-3", v.Identifier.Value)
}

func TestStation_ObserverSeesWorkflow(t *testing.T) {
	obs := &recordingObserver{}
	sub := &fakeSubmitter{result: checkin.Result{Outcome: checkin.OutcomeSuccess}}
	s, cam := newTestStation(t, sub, Config{Observer: Observers{obs}})

	scanText(t, s, cam, `{"visitorCode":"VK-8"}`, ModeConfirm)
	_, err := s.Submit(context.Background(), checkin.DirectionCheckin, "")
	require.NoError(t, err)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Len(t, obs.starts, 1)
	require.Len(t, obs.decodes, 1)
	assert.NoError(t, obs.decodes[0])
	require.Len(t, obs.submitted, 1)
	assert.Equal(t, checkin.OutcomeSuccess, obs.submitted[0].Outcome)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{camera.ErrPermissionDenied, "permission_denied"},
		{camera.ErrDeviceUnavailable, "device_unavailable"},
		{ErrDecodeUnparseable, "decode_unparseable"},
		{checkin.ErrValidation, "validation_error"},
		{checkin.ErrNetworkFailure, "network_failure"},
		{checkin.ErrServerDecline, "server_decline"},
		{ErrSubmitInFlight, "submit_in_flight"},
		{ErrNoCheckpoint, "no_checkpoint"},
		{camera.ErrNotStreaming, "not_scanning"},
		{errors.New("disk on fire"), "internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err))
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(&fakeSubmitter{}, Config{Cooldown: -1})

	a := r.Open("a")
	assert.Same(t, a, r.Open("a"))
	r.Open("b")
	assert.Equal(t, 2, r.Len())

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.Station.ID())

	a.Camera.SetPermission(camera.PermissionGranted)
	require.NoError(t, a.Station.StartScanning(context.Background()))
	require.True(t, a.Camera.Streaming())

	r.Close("a")
	assert.False(t, a.Camera.Streaming())
	_, ok = r.Get("a")
	assert.False(t, ok)

	r.CloseAll()
	assert.Equal(t, 0, r.Len())
}
