// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the scanpoint API.

	mux := router.NewRouter(router.Deps{...}, cfg)

# Endpoints

Service:

	GET /health
	GET /metrics

Operator session and backend passthrough:

	POST /api/setCookie - Store the backend token in a cookie
	POST /api/logout    - Clear it (and the station checkpoint, if named)
	*    /api/proxy     - Forward ?path= to the event backend

Checkpoints:

	GET /checkpoints                 - Checkpoint list from the backend
	GET /checkpoints/{id}/live-count - Current head count (needs Redis)

Stations (all but POST require X-Station-Key):

	POST /stations
	GET  /stations/{id}
	GET  /stations/{id}/checkpoint
	PUT  /stations/{id}/checkpoint

Scan workflow (X-Station-Key):

	GET  /stations/{id}/scan          - Current view
	POST /stations/{id}/scan/start    - Open the camera
	POST /stations/{id}/scan/stop
	POST /stations/{id}/scan/restart
	POST /stations/{id}/scan/frame    - Image frame to decode
	POST /stations/{id}/scan/decoded  - Text decoded on the device
	PUT  /stations/{id}/scan/manual   - Operator input
	POST /stations/{id}/scan/checkin
	POST /stations/{id}/scan/checkout
	POST /stations/{id}/scan/dismiss
*/
package router
