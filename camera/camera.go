// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package camera owns a station's camera: one session opens and releases the
// stream, guarantees a single decode per cycle and enforces a cooldown
// between release and the next open.
package camera

import (
	"context"
	"errors"
)

var (
	ErrPermissionDenied  = errors.New("camera permission denied")
	ErrDeviceUnavailable = errors.New("camera device unavailable")
	ErrSuperseded        = errors.New("camera start superseded by a newer call")
	ErrNotStreaming      = errors.New("camera is not streaming")
	ErrNoCode            = errors.New("no QR code in frame")
)

// Camera acquires a decoding stream from a video source.
//
// Open must honor ctx: a cancelled open returns promptly and holds nothing.
// Implementations return ErrPermissionDenied when access was refused.
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open camera handle that emits decoded QR text.
// Decodes is closed when the stream dies or is closed.
type Stream interface {
	Decodes() <-chan string
	Close() error
}

// State of a camera session
type State int

const (
	StateIdle State = iota
	StateStarting
	StateActive
	StateStopping
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
