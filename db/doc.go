// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db persists stations and their selected checkpoints.

Open connects to SQLite (modernc.org/sqlite) or PostgreSQL (lib/pq) and
CreateSchema creates the tables. It is safe to call on every start.

# Tables

  - station: Registered check-in stations
  - selected_checkpoint: The checkpoint each station is working

	station 1──0..1 selected_checkpoint

Queries go through Store and use $N placeholders, which both drivers accept.
*/
package db
