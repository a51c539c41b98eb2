// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package present

import (
	"strings"
	"sync"
	"time"

	"github.com/danielhkuo/scanpoint/checkin"
)

// DefaultVIPDuration is how long the VIP highlight stays up
const DefaultVIPDuration = 5 * time.Second

const (
	ColorRed    = "red"
	ColorYellow = "yellow"
	ColorGreen  = "green"
	ColorGray   = "gray"
)

// ColorFor maps a severity flag to its display color
func ColorFor(s checkin.Severity) string {
	switch strings.ToLower(string(s)) {
	case string(checkin.SeverityRed):
		return ColorRed
	case string(checkin.SeverityYellow):
		return ColorYellow
	case string(checkin.SeverityGreen):
		return ColorGreen
	default:
		return ColorGray
	}
}

// View is what the operator sees for the last submission
type View struct {
	Visible  bool             `json:"visible"`
	Outcome  checkin.Outcome  `json:"outcome,omitempty"`
	Message  string           `json:"message,omitempty"`
	Severity checkin.Severity `json:"severity,omitempty"`
	Color    string           `json:"color,omitempty"`
	VIP      *checkin.VIP     `json:"vip,omitempty"`
}

type Config struct {
	// VIPDuration defaults to DefaultVIPDuration
	VIPDuration time.Duration
	// OnDismiss runs after the operator dismisses a result
	OnDismiss func()
}

// Panel holds the result on screen and the self-dismissing VIP overlay
type Panel struct {
	vipDuration time.Duration
	onDismiss   func()

	mu       sync.Mutex
	result   *checkin.Result
	vip      *checkin.VIP
	vipTimer *time.Timer
	vipSeq   uint64
}

func NewPanel(cfg Config) *Panel {
	d := cfg.VIPDuration
	if d <= 0 {
		d = DefaultVIPDuration
	}
	return &Panel{vipDuration: d, onDismiss: cfg.OnDismiss}
}

// Show puts a result on screen, replacing any previous one
func (p *Panel) Show(r checkin.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.result = &r
	p.hideVIPLocked()
	if r.VIP == nil {
		return
	}

	vip := *r.VIP
	p.vip = &vip
	p.vipSeq++
	seq := p.vipSeq
	p.vipTimer = time.AfterFunc(p.vipDuration, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.vipSeq == seq {
			p.vip = nil
			p.vipTimer = nil
		}
	})
}

// View returns a snapshot of the panel
func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.result == nil {
		return View{}
	}
	v := View{
		Visible:  true,
		Outcome:  p.result.Outcome,
		Message:  p.result.Message,
		Severity: p.result.Severity,
		Color:    ColorFor(p.result.Severity),
	}
	if p.vip != nil {
		vip := *p.vip
		v.VIP = &vip
	}
	return v
}

// VIPVisible reports whether the VIP overlay is still up
func (p *Panel) VIPVisible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vip != nil
}

// Dismiss clears the panel and tells the owner to reset its scan state
func (p *Panel) Dismiss() {
	p.Clear()
	if p.onDismiss != nil {
		p.onDismiss()
	}
}

// Clear empties the panel without notifying the owner
func (p *Panel) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = nil
	p.hideVIPLocked()
}

func (p *Panel) hideVIPLocked() {
	if p.vipTimer != nil {
		p.vipTimer.Stop()
		p.vipTimer = nil
	}
	p.vip = nil
	p.vipSeq++
}
