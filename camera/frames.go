// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	_ "golang.org/x/image/webp"
)

// Permission is the camera access decision reported by the client device
type Permission string

const (
	PermissionPrompt  Permission = "prompt"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// FrameCamera is fed from outside the process: the station's browser posts
// captured frames, or text it already decoded, and the camera turns QR hits
// into stream decodes. Only one stream may be open at a time.
type FrameCamera struct {
	mu         sync.Mutex
	permission Permission
	stream     *frameStream
}

func NewFrameCamera() *FrameCamera {
	return &FrameCamera{permission: PermissionPrompt}
}

// SetPermission records the latest permission answer from the device
func (c *FrameCamera) SetPermission(p Permission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.permission = p
}

func (c *FrameCamera) Permission() Permission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.permission
}

// Open hands out the single stream of this camera
func (c *FrameCamera) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.permission == PermissionDenied {
		return nil, ErrPermissionDenied
	}
	if c.stream != nil {
		return nil, fmt.Errorf("%w: stream already open", ErrDeviceUnavailable)
	}

	c.stream = &frameStream{owner: c, decodes: make(chan string, 1)}
	return c.stream, nil
}

// Streaming reports whether a stream is currently open
func (c *FrameCamera) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// PushFrame decodes a frame and forwards any QR text to the open stream.
// Frames without a code are dropped and report false.
func (c *FrameCamera) PushFrame(img image.Image) (bool, error) {
	if !c.Streaming() {
		return false, ErrNotStreaming
	}

	text, err := DecodeQR(img)
	if errors.Is(err, ErrNoCode) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := c.PushText(text); err != nil {
		return false, err
	}
	return true, nil
}

// PushText forwards text decoded on the device. While a decode is already
// pending the new one is dropped.
func (c *FrameCamera) PushText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return ErrNotStreaming
	}

	select {
	case c.stream.decodes <- text:
	default:
	}
	return nil
}

type frameStream struct {
	owner   *FrameCamera
	decodes chan string
	once    sync.Once
}

func (s *frameStream) Decodes() <-chan string {
	return s.decodes
}

func (s *frameStream) Close() error {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()

	s.once.Do(func() {
		if s.owner.stream == s {
			s.owner.stream = nil
		}
		close(s.decodes)
	})
	return nil
}

// ReadFrame decodes a PNG, JPEG or WebP frame
func ReadFrame(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

// DecodeQR extracts the text of a QR code from img
func DecodeQR(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("failed to binarize frame: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}

	return result.GetText(), nil
}
