// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package scan runs the scan-and-verify workflow of a check-in station.

# Stations

A Station ties one camera session, one submitter and one result panel
together:

	st := scan.NewStation(id, cam, client, scan.Config{Cooldown: 300 * time.Millisecond})
	st.SetCheckpoint(cp)
	err := st.StartScanning(ctx)

Every start, stop and manual edit bumps the station's cycle; decodes that
arrive for an older cycle are dropped.

# Payloads

Decoded QR text is expected to be a JSON object with a visitorCode field:

	{"visitorCode": "VIS-1234"}

Anything else, or a code that does not classify, moves the station to
manual correction with ErrDecodeUnparseable.

# Submission

Submit allows one request at a time and never retries. Backend answers and
transport failures alike move the station to the result screen, from which
the operator may submit again or dismiss.

# Registry

Registry keeps the stations of this process keyed by station ID. Each
entry carries a FrameCamera that the HTTP layer feeds with frames or
device-decoded text.

# Observers

Observer receives camera starts, decodes and submissions. Observers fans
out to several, e.g. metrics and live counts.
*/
package scan
