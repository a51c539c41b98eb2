// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides station keys and operator token helpers.

# Station Keys

Station keys use HMAC-SHA256 to create deterministic, verifiable keys:

	key := auth.GenerateStationKey(stationID, salt)
	err := auth.ValidateStationKey(stationID, key, salt)

The key is URL-safe base64 encoded without padding. It is never stored;
the same station ID and salt always produce the same key.

# Station IDs

	id := auth.GenerateStationID() // random UUID

# Operator Tokens

The operator's backend token lives in the accessToken cookie:

	cookie, err := auth.NewAccessTokenCookie(token, secure)
	token := auth.RequestToken(r) // Bearer header, else cookie

# IP Hashing

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
