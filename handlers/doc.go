// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the scanpoint API.

# Handler Types

  - StationHandler: Station registration and checkpoint selection
  - ScanHandler: The scan workflow of one station
  - CheckpointHandler: Backend checkpoint list and live counts
  - SessionHandler: Operator token cookie and logout

# Stations

A station is created once and authenticates afterwards with the key it was
given:

	POST /stations → Create (returns station_id, station_key)

Stations are loaded into the scan registry on first use, together with
their persisted checkpoint.

# Scan Workflow

	idle → scanning → confirm → result
	           ↘ manual ↗

A decode that is not a valid visitor record lands in manual with an empty
input. Check-in and check-out use the operator token from the Authorization
header or the accessToken cookie. A backend decline is still 200; the view
carries the result.

Workflow errors are JSON with a machine-readable code:

	{"error": "Conflict", "message": "...", "code": "submit_in_flight"}
*/
package handlers
