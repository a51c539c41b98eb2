// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scan

import (
	"sync"

	"github.com/danielhkuo/scanpoint/camera"
)

// Entry pairs a station with the frame camera its device feeds
type Entry struct {
	Station *Station
	Camera  *camera.FrameCamera
}

// Registry keeps the live stations of this process
type Registry struct {
	submitter Submitter
	cfg       Config

	mu       sync.Mutex
	stations map[string]*Entry
}

func NewRegistry(sub Submitter, cfg Config) *Registry {
	return &Registry{
		submitter: sub,
		cfg:       cfg,
		stations:  make(map[string]*Entry),
	}
}

// Open returns the station for id, creating it on first use
func (r *Registry) Open(id string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.stations[id]; ok {
		return e
	}
	cam := camera.NewFrameCamera()
	e := &Entry{
		Station: NewStation(id, cam, r.submitter, r.cfg),
		Camera:  cam,
	}
	r.stations[id] = e
	return e
}

func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.stations[id]
	return e, ok
}

// Close tears down and forgets one station
func (r *Registry) Close(id string) {
	r.mu.Lock()
	e, ok := r.stations[id]
	delete(r.stations, id)
	r.mu.Unlock()

	if ok {
		e.Station.Close()
	}
}

// CloseAll tears down every station, releasing all cameras
func (r *Registry) CloseAll() {
	r.mu.Lock()
	entries := make([]*Entry, 0, len(r.stations))
	for id, e := range r.stations {
		entries = append(entries, e)
		delete(r.stations, id)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.Station.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stations)
}
