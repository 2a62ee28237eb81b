package admission

import (
	"errors"
	"fmt"
)

// Rejection reasons, in roughly the order the controller checks them.
// Handlers map these to HTTP statuses; the attempt log records them as
// outcome rows.
var (
	ErrServiceDisabled  = errors.New("queueing is currently disabled")
	ErrUnknownDevice    = errors.New("unrecognized device")
	ErrDeviceBlocked    = errors.New("this device has been blocked")
	ErrInvalidReference = errors.New("invalid track link or id")
	ErrTrackBanned      = errors.New("this track is not allowed")
	ErrExplicitBlocked  = errors.New("explicit tracks are not allowed")
	ErrDuplicateInQueue = errors.New("this track is already in the queue")
	ErrNoActiveDevice   = errors.New("no active playback device")
	ErrNotConnected     = errors.New("no playback account is connected")
)

// CooldownError rejects a device that is cooling down or just exhausted
// its quota. RemainingSec is how long until the device may queue again.
type CooldownError struct {
	RemainingSec int64
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooling down, try again in %d seconds", e.RemainingSec)
}

// TooLongError rejects a track over the configured duration cap.
type TooLongError struct {
	DurationSec int
	LimitSec    int
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("track is %d seconds, limit is %d", e.DurationSec, e.LimitSec)
}
