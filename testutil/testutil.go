// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package testutil provides shared helpers for handler and router tests.
package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/scanpoint/auth"
	"github.com/danielhkuo/scanpoint/cliparse"
	"github.com/danielhkuo/scanpoint/db"
	"github.com/danielhkuo/scanpoint/models"
)

// TestSalt is the station key salt of GetTestConfig
const TestSalt = "test-station-salt"

// SetupTestDB creates a fresh in-memory database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(context.Background(), db.TypeSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:           3318,
		DatabaseURL:    ":memory:",
		DatabaseType:   db.TypeSQLite,
		StationKeySalt: TestSalt,
		APIPrefix:      "volunteer",
		Cooldown:       -1,
		SubmitTimeout:  2 * time.Second,
		VIPDuration:    50 * time.Millisecond,
	}
}

// CreateTestStation registers a station and returns its ID and station key
func CreateTestStation(t *testing.T, store *db.Store, label string) (stationID, stationKey string) {
	t.Helper()

	now := time.Now()
	stationID = auth.GenerateStationID()
	err := store.CreateStation(context.Background(), models.Station{
		ID:         stationID,
		Label:      label,
		CreatedAt:  now,
		LastSeenAt: now,
	})
	if err != nil {
		t.Fatalf("Failed to create test station: %v", err)
	}

	return stationID, auth.GenerateStationKey(stationID, TestSalt)
}

// BackendRequest is one request received by a Backend
type BackendRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

// Decode unmarshals the request body
func (r BackendRequest) Decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(r.Body), v); err != nil {
		t.Fatalf("Failed to decode backend request %s: %v", r.Path, err)
	}
}

type reply struct {
	status int
	body   string
}

// Backend is a fake event backend. Paths without a reply answer 404.
type Backend struct {
	*httptest.Server

	mu       sync.Mutex
	replies  map[string]reply
	requests []BackendRequest
}

func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{replies: make(map[string]reply)}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

// Reply sets the answer for a backend path such as "volunteer/scan/checkin"
func (b *Backend) Reply(path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies[strings.Trim(path, "/")] = reply{status: status, body: body}
}

// Requests returns the requests received so far for path
func (b *Backend) Requests(path string) []BackendRequest {
	b.mu.Lock()
	defer b.mu.Unlock()

	path = strings.Trim(path, "/")
	var out []BackendRequest
	for _, r := range b.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	path := strings.Trim(r.URL.Path, "/")

	b.mu.Lock()
	b.requests = append(b.requests, BackendRequest{
		Method: r.Method,
		Path:   path,
		Header: r.Header.Clone(),
		Body:   string(raw),
	})
	rep, ok := b.replies[path]
	b.mu.Unlock()

	if !ok {
		rep = reply{status: http.StatusNotFound, body: `{"success":false,"message":"not found"}`}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	io.WriteString(w, rep.body)
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body any, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
