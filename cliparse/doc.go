// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# CLI Flags

	-env            .env file to load (default .env if present)
	-p              Server port
	-t              Database type (sqlite or postgres)
	-d              Database URL
	-api            Event backend base URL
	-api-prefix     Backend path prefix
	-auth-token     Static auth-token header for the backend
	-redis          Redis URL for live counts
	-station-salt   Station key salt
	-cooldown       Camera restart cooldown
	-submit-timeout Backend submission timeout
	-vip-duration   How long the VIP highlight stays up
	-production     Secure cookies and info-level logs

# Environment Variables

Flags fall back to environment variables:

	PORT             → -p
	DATABASE_TYPE    → -t
	DATABASE_URL     → -d
	API_BASE_URL     → -api
	API_PREFIX       → -api-prefix
	AUTH_TOKEN       → -auth-token
	REDIS_URL        → -redis
	STATION_KEY_SALT → -station-salt
	SCAN_COOLDOWN    → -cooldown
	SUBMIT_TIMEOUT   → -submit-timeout
	VIP_DURATION     → -vip-duration
	APP_ENV=production → -production

CLI flags take precedence over environment variables, which take
precedence over the .env file.

# Validation

ParseFlags returns an error when STATION_KEY_SALT is missing, the database
type is unknown or a duration does not parse.
*/
package cliparse
