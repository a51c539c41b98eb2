// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package checkin submits check-in and check-out scans to the event backend.
package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/scanpoint/classify"
	"github.com/danielhkuo/scanpoint/models"
	"github.com/danielhkuo/scanpoint/proxy"
)

var (
	ErrValidation     = errors.New("identifier is not a visitor code or email")
	ErrNetworkFailure = errors.New("backend unreachable")
	ErrServerDecline  = errors.New("backend declined the scan")
	ErrBadDirection   = errors.New("direction must be checkin or checkout")
)

// DefaultTimeout bounds a single submission
const DefaultTimeout = 15 * time.Second

// DefaultPrefix is the backend path prefix for volunteer endpoints
const DefaultPrefix = "volunteer"

const fallbackMessage = "An error occurred"

// Operator-facing texts for failed attempts; the cause only goes to the log
const (
	unreachableMessage = "Backend unreachable"
	timeoutMessage     = "Request timed out"
	unreadableMessage  = "Unexpected response from backend"
)

// Direction of a scan submission
type Direction string

const (
	DirectionCheckin  Direction = "checkin"
	DirectionCheckout Direction = "checkout"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionCheckin, DirectionCheckout:
		return Direction(s), nil
	}
	return "", ErrBadDirection
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeDecline Outcome = "decline"
	OutcomeError   Outcome = "error"
)

// Severity is the color flag the backend attaches to a scan
type Severity string

const (
	SeverityRed    Severity = "red"
	SeverityYellow Severity = "yellow"
	SeverityGreen  Severity = "green"
)

type VIP struct {
	Name  string `json:"name"`
	Event string `json:"event"`
}

// Result of one submission attempt
type Result struct {
	Outcome  Outcome  `json:"outcome"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	VIP      *VIP     `json:"vip,omitempty"`
	// Err is ErrNetworkFailure or ErrServerDecline for failed attempts
	Err error `json:"-"`
}

// Request is the backend scan body. Exactly one of VisitorCode and Email is set.
type Request struct {
	VisitorCode    *string `json:"visitorCode"`
	CheckinpointID string  `json:"checkinpointID"`
	Email          *string `json:"email"`
}

type VisitorInfo struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Event string `json:"event"`
}

// Response is the backend scan reply
type Response struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	CheckFlag   string       `json:"checkFlag"`
	VisitorInfo *VisitorInfo `json:"visitorInfo,omitempty"`
}

// NewRequest builds the body for a classified identifier
func NewRequest(id classify.Identifier, cp models.Checkpoint) (Request, error) {
	req := Request{CheckinpointID: cp.ID}
	value := id.Value
	switch id.Kind {
	case classify.KindCode:
		req.VisitorCode = &value
	case classify.KindEmail:
		req.Email = &value
	default:
		return Request{}, ErrValidation
	}
	return req, nil
}

// Forwarder sends requests to the event backend
type Forwarder interface {
	Forward(ctx context.Context, out proxy.Outbound) (*http.Response, error)
}

type Config struct {
	Prefix  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client submits check-in and check-out scans. It never retries.
type Client struct {
	fwd     Forwarder
	prefix  string
	timeout time.Duration
	log     *slog.Logger
}

func NewClient(fwd Forwarder, cfg Config) *Client {
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{fwd: fwd, prefix: prefix, timeout: timeout, log: log}
}

// Endpoint returns the backend path for a direction
func (c *Client) Endpoint(dir Direction) string {
	return c.prefix + "/scan/" + string(dir)
}

// Submit sends one scan. Unknown identifiers are rejected with
// ErrValidation before any request is made; every other failure is
// reported through the returned Result.
func (c *Client) Submit(ctx context.Context, dir Direction, id classify.Identifier, cp models.Checkpoint, accessToken string) (Result, error) {
	if _, err := ParseDirection(string(dir)); err != nil {
		return Result{}, err
	}
	body, err := NewRequest(id, cp)
	if err != nil {
		return Result{}, err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode scan request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.fwd.Forward(ctx, proxy.Outbound{
		Method:      http.MethodPost,
		Path:        c.Endpoint(dir),
		Body:        raw,
		ContentType: "application/json",
		AccessToken: accessToken,
	})
	if err != nil {
		c.log.Error("scan submission failed", "direction", dir, "checkpoint", cp.ID, "error", err)
		message := unreachableMessage
		if errors.Is(err, context.DeadlineExceeded) {
			message = timeoutMessage
		}
		return failure(message, err), nil
	}
	defer resp.Body.Close()

	result := c.interpret(resp)
	c.log.Info("scan submitted",
		"direction", dir,
		"checkpoint", cp.ID,
		"kind", id.Kind,
		"status", resp.StatusCode,
		"outcome", result.Outcome,
	)
	return result, nil
}

func (c *Client) interpret(resp *http.Response) Result {
	var payload Response
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok || (decodeErr == nil && !payload.Success) {
		message := payload.Message
		if message == "" {
			message = fallbackMessage
		}
		return Result{
			Outcome:  OutcomeDecline,
			Message:  message,
			Severity: SeverityRed,
			Err:      ErrServerDecline,
		}
	}

	if decodeErr != nil {
		c.log.Error("unreadable backend response", "status", resp.StatusCode, "error", decodeErr)
		return failure(unreadableMessage, decodeErr)
	}

	result := Result{
		Outcome:  OutcomeSuccess,
		Message:  payload.Message,
		Severity: Severity(payload.CheckFlag),
	}
	if info := payload.VisitorInfo; info != nil && strings.EqualFold(info.Type, "VIP") {
		result.VIP = &VIP{Name: info.Name, Event: info.Event}
	}
	return result
}

func failure(message string, err error) Result {
	return Result{
		Outcome:  OutcomeError,
		Message:  message,
		Severity: SeverityRed,
		Err:      fmt.Errorf("%w: %v", ErrNetworkFailure, err),
	}
}
