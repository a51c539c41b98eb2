// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/scanpoint/checkin"
	"github.com/danielhkuo/scanpoint/cliparse"
	"github.com/danielhkuo/scanpoint/db"
	"github.com/danielhkuo/scanpoint/livecount"
	"github.com/danielhkuo/scanpoint/metrics"
	"github.com/danielhkuo/scanpoint/middleware"
	"github.com/danielhkuo/scanpoint/models"
	"github.com/danielhkuo/scanpoint/proxy"
	"github.com/danielhkuo/scanpoint/router"
	"github.com/danielhkuo/scanpoint/scan"
	"github.com/danielhkuo/scanpoint/testutil"
)

const appToken = "app-auth-token"

type testEnv struct {
	mux     http.Handler
	cfg     cliparse.Config
	store   *db.Store
	backend *testutil.Backend
	redis   *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := testutil.GetTestConfig()
	backend := testutil.NewBackend(t)
	cfg.APIBaseURL = backend.URL
	cfg.AuthToken = appToken

	store := db.NewStore(testutil.SetupTestDB(t))

	fwd := proxy.New(proxy.Config{BaseURL: cfg.APIBaseURL, AuthToken: cfg.AuthToken})
	client := checkin.NewClient(fwd, checkin.Config{Prefix: cfg.APIPrefix, Timeout: cfg.SubmitTimeout})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	counter := livecount.New(rdb, nil)

	promReg := metrics.NewRegistry()
	registry := scan.NewRegistry(client, scan.Config{
		Cooldown:    cfg.Cooldown,
		VIPDuration: cfg.VIPDuration,
		Observer:    scan.Observers{metrics.New(promReg), counter},
	})
	t.Cleanup(registry.CloseAll)

	mux := router.NewRouter(router.Deps{
		Store:     store,
		Registry:  registry,
		Forwarder: fwd,
		Counter:   counter,
		Metrics:   promReg,
	}, cfg)

	return &testEnv{mux: mux, cfg: cfg, store: store, backend: backend, redis: mr}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

// station registers a station with a checkpoint already selected
func (e *testEnv) station(t *testing.T) (id string, headers map[string]string) {
	t.Helper()

	id, key := testutil.CreateTestStation(t, e.store, "North door")
	headers = map[string]string{middleware.StationKeyHeader: key}

	w := e.do(testutil.MakeRequest("PUT", "/stations/"+id+"/checkpoint",
		models.Checkpoint{ID: "cp-1", Name: "Main Gate", EventName: "Expo"}, headers))
	testutil.AssertStatus(t, w, http.StatusOK)
	return id, headers
}

func (e *testEnv) view(t *testing.T, id string, headers map[string]string) scan.View {
	t.Helper()

	w := e.do(testutil.MakeRequest("GET", "/stations/"+id+"/scan", nil, headers))
	testutil.AssertStatus(t, w, http.StatusOK)
	var v scan.View
	testutil.AssertJSON(t, w, &v)
	return v
}

// waitForMode polls the station view until it reaches mode
func (e *testEnv) waitForMode(t *testing.T, id string, headers map[string]string, mode scan.Mode) scan.View {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		v := e.view(t, id, headers)
		if v.Mode == mode {
			return v
		}
		if time.Now().After(deadline) {
			t.Fatalf("station never reached mode %q, last view: %+v", mode, v)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	return resp
}
