package models

import "time"

// Camera permission answers reported by the station device
const (
	PermissionPrompt  = "prompt"
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
)

// Request types

type CreateStationRequest struct {
	Label string `json:"label"`
}

type SetCookieRequest struct {
	AccessToken string `json:"accessToken"`
}

type StartScanRequest struct {
	Permission string `json:"permission"`
}

type DecodedTextRequest struct {
	Text string `json:"text"`
}

type ManualInputRequest struct {
	Input string `json:"input"`
}

// Response types

type CreateStationResponse struct {
	StationID  string `json:"station_id"`
	StationKey string `json:"station_key"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type FrameResponse struct {
	Found bool `json:"found"`
}

type CheckpointListResponse struct {
	Checkpoints []Checkpoint `json:"checkpoints"`
}

type LiveCountResponse struct {
	CheckinpointID string `json:"checkinpointID"`
	CurrentCount   int64  `json:"currentCount"`
}

// Domain types

// Checkpoint is the venue station a volunteer scans at
type Checkpoint struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	EventName string `json:"event_name"`
}

type Station struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	IPHash     *string   `json:"-"` // Never expose in JSON
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

type StationInfo struct {
	Station
	LastSeen   string      `json:"last_seen"`
	Checkpoint *Checkpoint `json:"checkpoint,omitempty"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}
