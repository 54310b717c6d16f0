package store

import "errors"

// ErrDeviceNotFound is returned by lookups against an unknown device.
var ErrDeviceNotFound = errors.New("store: device not found")
