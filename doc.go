// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the scanpoint server.

scanpoint drives event check-in stations. Each station feeds camera frames
(or already-decoded QR text) to the server, which turns them into visitor
identifiers, lets the operator correct them by hand and submits check-ins
and check-outs to the event backend.

# Starting the Server

	STATION_KEY_SALT=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -api https://events.example.com

# Configuration

Required settings:

  - STATION_KEY_SALT (-station-salt): Secret for station key HMAC

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - DATABASE_URL (-d): Connection string (default: file:scanpoint.db)
  - API_BASE_URL (-api): Event backend base URL
  - REDIS_URL (-redis): Enables live checkpoint counts

A .env file in the working directory is loaded first when present.

# Architecture

  - camera: Camera sessions and frame decoding
  - classify: Visitor identifier classification
  - scan: The per-station workflow and the station registry
  - checkin: Backend submissions
  - present: Result and VIP display state
  - handlers, router, middleware: The HTTP surface
  - db: Station and checkpoint persistence
  - livecount, metrics: Optional observers of the workflow
*/
package main
