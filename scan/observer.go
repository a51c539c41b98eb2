// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scan

import (
	"github.com/danielhkuo/scanpoint/checkin"
	"github.com/danielhkuo/scanpoint/models"
)

// Observer is told about workflow events. Calls happen outside station locks.
type Observer interface {
	CameraStarted(err error)
	Decoded(err error)
	Submitted(dir checkin.Direction, cp models.Checkpoint, res checkin.Result)
}

// Observers fans events out to several observers
type Observers []Observer

func (o Observers) CameraStarted(err error) {
	for _, obs := range o {
		obs.CameraStarted(err)
	}
}

func (o Observers) Decoded(err error) {
	for _, obs := range o {
		obs.Decoded(err)
	}
}

func (o Observers) Submitted(dir checkin.Direction, cp models.Checkpoint, res checkin.Result) {
	for _, obs := range o {
		obs.Submitted(dir, cp, res)
	}
}
