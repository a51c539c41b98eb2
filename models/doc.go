// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

  - CreateStationRequest: label
  - SetCookieRequest: accessToken
  - StartScanRequest: permission (prompt, granted, denied)
  - DecodedTextRequest: text
  - ManualInputRequest: input

# Response Types

  - CreateStationResponse: station_id, station_key
  - FrameResponse: found
  - CheckpointListResponse: checkpoints
  - LiveCountResponse: checkinpointID, currentCount
  - MessageResponse, ErrorResponse

# Domain Types

  - Station: a registered check-in station
  - Checkpoint: the venue point a station scans for
*/
package models
