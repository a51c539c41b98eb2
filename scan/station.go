// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/danielhkuo/scanpoint/camera"
	"github.com/danielhkuo/scanpoint/checkin"
	"github.com/danielhkuo/scanpoint/classify"
	"github.com/danielhkuo/scanpoint/models"
	"github.com/danielhkuo/scanpoint/present"
)

var (
	ErrSubmitInFlight = errors.New("a submission is already in progress")
	ErrNoCheckpoint   = errors.New("no checkpoint selected")
)

// Mode is the screen the station is on
type Mode string

const (
	ModeIdle     Mode = "idle"
	ModeScanning Mode = "scanning"
	ModeConfirm  Mode = "confirm"
	ModeManual   Mode = "manual"
	ModeResult   Mode = "result"
)

// Submitter sends a resolved identifier to the backend
type Submitter interface {
	Submit(ctx context.Context, dir checkin.Direction, id classify.Identifier, cp models.Checkpoint, accessToken string) (checkin.Result, error)
}

type Config struct {
	Cooldown    time.Duration
	VIPDuration time.Duration
	Observer    Observer
	Logger      *slog.Logger
}

// View is a snapshot of a station for the operator's screen
type View struct {
	StationID   string              `json:"station_id"`
	Mode        Mode                `json:"mode"`
	Camera      string              `json:"camera"`
	Checkpoint  *models.Checkpoint  `json:"checkpoint,omitempty"`
	Payload     *Payload            `json:"payload,omitempty"`
	Identifier  classify.Identifier `json:"identifier"`
	ManualInput string              `json:"manual_input"`
	Error       string              `json:"error,omitempty"`
	ErrorCode   string              `json:"error_code,omitempty"`
	Submitting  bool                `json:"submitting"`
	Result      present.View        `json:"result"`
}

// Station runs the scan-and-verify workflow for one operator screen:
// camera cycle, decode, manual correction, submission and result.
type Station struct {
	id        string
	session   *camera.Session
	submitter Submitter
	panel     *present.Panel
	observer  Observer
	log       *slog.Logger

	mu          sync.Mutex
	checkpoint  *models.Checkpoint
	mode        Mode
	cycle       uint64
	payload     *Payload
	ident       classify.Identifier
	manualInput string
	err         error
	submitting  bool
}

func NewStation(id string, cam camera.Camera, sub Submitter, cfg Config) *Station {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("station", id)

	observer := cfg.Observer
	if observer == nil {
		observer = Observers{}
	}

	s := &Station{
		id:        id,
		submitter: sub,
		observer:  observer,
		log:       log,
		mode:      ModeIdle,
		ident:     classify.Identifier{Kind: classify.KindUnknown},
	}
	s.session = camera.NewSession(cam, camera.Config{Cooldown: cfg.Cooldown, Logger: log})
	s.panel = present.NewPanel(present.Config{VIPDuration: cfg.VIPDuration, OnDismiss: s.reset})
	return s
}

func (s *Station) ID() string {
	return s.id
}

// SetCheckpoint installs the checkpoint chosen for this station
func (s *Station) SetCheckpoint(cp models.Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoint = &cp
}

// ClearCheckpoint forgets the checkpoint, e.g. on sign-out
func (s *Station) ClearCheckpoint() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoint = nil
}

func (s *Station) Checkpoint() (models.Checkpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkpoint == nil {
		return models.Checkpoint{}, false
	}
	return *s.checkpoint, true
}

// StartScanning clears the previous scan and opens a fresh camera cycle.
// A running camera is stopped first and given its cooldown.
func (s *Station) StartScanning(ctx context.Context) error {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return ErrSubmitInFlight
	}
	s.cycle++
	cycle := s.cycle
	s.clearScanLocked()
	s.mode = ModeScanning
	s.mu.Unlock()

	s.panel.Clear()

	hits, err := s.session.Restart(ctx)
	if errors.Is(err, camera.ErrSuperseded) {
		return err
	}
	s.observer.CameraStarted(err)
	if err != nil {
		s.mu.Lock()
		if cycle == s.cycle {
			s.mode = ModeIdle
			s.err = err
		}
		s.mu.Unlock()
		s.log.Warn("scanner failed to start", "error", err)
		return err
	}

	go s.await(cycle, hits)
	return nil
}

// StopScanning releases the camera and returns to idle
func (s *Station) StopScanning() {
	s.mu.Lock()
	s.cycle++
	if s.mode == ModeScanning {
		s.mode = ModeIdle
	}
	s.mu.Unlock()

	s.session.Stop()
}

func (s *Station) await(cycle uint64, hits <-chan string) {
	text, ok := <-hits
	if ok {
		s.handleDecode(cycle, text)
		return
	}

	// cycle ended without a decode: stopped, superseded or the stream died
	camErr := s.session.Err()
	s.mu.Lock()
	defer s.mu.Unlock()
	if cycle != s.cycle || s.mode != ModeScanning {
		return
	}
	s.mode = ModeIdle
	if camErr != nil {
		s.err = camErr
	}
}

// handleDecode consumes the text of a camera decode for the given cycle.
// The session has already released the camera. A valid visitor record moves
// to confirmation, anything else to manual correction with an empty input.
func (s *Station) handleDecode(cycle uint64, raw string) {
	payload := ParsePayload(raw)
	id, err := Resolve(payload)

	s.mu.Lock()
	if cycle != s.cycle {
		s.mu.Unlock()
		return
	}
	s.payload = &payload
	s.manualInput = ""
	if err != nil {
		s.mode = ModeManual
		s.ident = classify.Identifier{Kind: classify.KindUnknown}
		s.err = err
	} else {
		s.mode = ModeConfirm
		s.ident = id
		s.err = nil
	}
	s.mu.Unlock()

	s.observer.Decoded(err)
	if err != nil {
		s.log.Info("scan needs manual correction", "error", err)
	} else {
		s.log.Info("visitor scanned", "kind", id.Kind)
	}
}

// EditManual classifies operator input as it is typed. Entering manual
// input stops a running scan.
func (s *Station) EditManual(input string) classify.Identifier {
	id := classify.Classify(input)

	s.mu.Lock()
	wasScanning := s.mode == ModeScanning
	if wasScanning {
		s.cycle++
	}
	s.mode = ModeManual
	s.manualInput = input
	s.ident = id
	switch {
	case id.Submittable():
		s.err = nil
	case id.Value != "":
		s.err = checkin.ErrValidation
	}
	s.mu.Unlock()

	if wasScanning {
		s.session.Stop()
	}
	return id
}

// Submit sends the resolved identifier in the given direction. Only one
// submission may be outstanding; failures leave the station retryable.
func (s *Station) Submit(ctx context.Context, dir checkin.Direction, accessToken string) (checkin.Result, error) {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return checkin.Result{}, ErrSubmitInFlight
	}
	if s.checkpoint == nil {
		s.mu.Unlock()
		return checkin.Result{}, ErrNoCheckpoint
	}
	id := s.ident
	if !id.Submittable() {
		// falling back to manual ends a running scan, as EditManual does
		wasScanning := s.mode == ModeScanning
		if wasScanning {
			s.cycle++
		}
		s.mode = ModeManual
		s.err = checkin.ErrValidation
		s.mu.Unlock()

		if wasScanning {
			s.session.Stop()
		}
		return checkin.Result{}, checkin.ErrValidation
	}
	cp := *s.checkpoint
	s.submitting = true
	s.mu.Unlock()

	res, err := s.submitter.Submit(ctx, dir, id, cp, accessToken)

	s.mu.Lock()
	s.submitting = false
	if err != nil {
		s.err = err
		s.mu.Unlock()
		return checkin.Result{}, err
	}
	s.mode = ModeResult
	s.err = res.Err
	s.mu.Unlock()

	s.panel.Show(res)
	s.observer.Submitted(dir, cp, res)
	return res, nil
}

// Dismiss closes the result and resets the scan. The camera is not
// restarted.
func (s *Station) Dismiss() {
	s.panel.Dismiss()
}

// VIPVisible reports whether the VIP highlight is on screen
func (s *Station) VIPVisible() bool {
	return s.panel.VIPVisible()
}

// CameraState reports the camera session state
func (s *Station) CameraState() camera.State {
	return s.session.State()
}

// View snapshots the station
func (s *Station) View() View {
	camState := s.session.State()
	result := s.panel.View()

	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		StationID:   s.id,
		Mode:        s.mode,
		Camera:      camState.String(),
		Identifier:  s.ident,
		ManualInput: s.manualInput,
		Submitting:  s.submitting,
		Result:      result,
	}
	if s.checkpoint != nil {
		cp := *s.checkpoint
		v.Checkpoint = &cp
	}
	if s.payload != nil {
		p := *s.payload
		v.Payload = &p
	}
	if s.err != nil {
		v.Error = s.err.Error()
		v.ErrorCode = ErrorCode(s.err)
	}
	return v
}

// Close tears the station down and releases the camera
func (s *Station) Close() {
	s.mu.Lock()
	s.cycle++
	s.mu.Unlock()

	s.session.Stop()
	s.panel.Clear()
}

// reset runs when the operator dismisses a result
func (s *Station) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearScanLocked()
	s.mode = ModeIdle
}

func (s *Station) clearScanLocked() {
	s.payload = nil
	s.ident = classify.Identifier{Kind: classify.KindUnknown}
	s.manualInput = ""
	s.err = nil
}

// ErrorCode names a workflow error for clients
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, camera.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, camera.ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, ErrDecodeUnparseable):
		return "decode_unparseable"
	case errors.Is(err, checkin.ErrValidation):
		return "validation_error"
	case errors.Is(err, checkin.ErrNetworkFailure):
		return "network_failure"
	case errors.Is(err, checkin.ErrServerDecline):
		return "server_decline"
	case errors.Is(err, ErrSubmitInFlight):
		return "submit_in_flight"
	case errors.Is(err, ErrNoCheckpoint):
		return "no_checkpoint"
	case errors.Is(err, camera.ErrSuperseded):
		return "superseded"
	case errors.Is(err, camera.ErrNotStreaming):
		return "not_scanning"
	default:
		return "internal"
	}
}
