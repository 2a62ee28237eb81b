package admission

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"spotiqueue/core/policy"
	"spotiqueue/core/spotify"
	"spotiqueue/logger"
	"spotiqueue/model"
	"spotiqueue/repository"
)

// Gateway is the slice of the playback provider the controller needs.
type Gateway interface {
	GetTrack(ctx context.Context, trackID string) (*model.TrackMetadata, error)
	AddToQueue(ctx context.Context, trackURI string) error
	GetQueue(ctx context.Context) (*model.QueueSnapshot, error)
	Connected() bool
}

// Request is one admission attempt.
type Request struct {
	FingerprintID string
	TrackRef      string
	Settings      policy.Settings
}

// Controller runs the admission pipeline: device checks, rate limiting,
// track policy, then the enqueue itself. Every decision lands in the
// attempt log exactly once.
type Controller struct {
	fingerprints repository.FingerprintRepository
	attempts     repository.AttemptRepository
	banned       repository.BannedRepository
	gateway      Gateway

	// now is swappable for tests.
	now func() int64
	// onEnqueued runs after a successful enqueue (cache invalidation,
	// live broadcast). Best effort.
	onEnqueued func(track *model.TrackMetadata)
}

// NewController wires an admission controller.
func NewController(fingerprints repository.FingerprintRepository, attempts repository.AttemptRepository,
	banned repository.BannedRepository, gateway Gateway) *Controller {
	return &Controller{
		fingerprints: fingerprints,
		attempts:     attempts,
		banned:       banned,
		gateway:      gateway,
		now:          func() int64 { return time.Now().Unix() },
	}
}

// OnEnqueued installs the post-enqueue hook.
func (c *Controller) OnEnqueued(fn func(track *model.TrackMetadata)) {
	c.onEnqueued = fn
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// record writes one attempt row. Logging failures must not change the
// admission outcome, so errors are only logged.
func (c *Controller) record(fingerprintID, status string, track *model.TrackMetadata, message string) {
	a := &model.QueueAttempt{
		FingerprintID: fingerprintID,
		Status:        status,
		ErrorMessage:  nullStr(message),
		Timestamp:     c.now(),
	}
	if track != nil {
		a.TrackID = nullStr(track.ID)
		a.TrackName = nullStr(track.Name)
		a.ArtistName = nullStr(track.Artists)
	}
	if err := c.attempts.Insert(a); err != nil {
		logger.Error("failed to record queue attempt",
			logger.String("fingerprint_id", fingerprintID),
			logger.String("status", status),
			logger.ErrorField(err))
	}
}

// CheckDevice runs the device-side half of the pipeline: existence,
// blocked status, active cooldown, then the trailing-window quota. It is
// shared by Admit and by the prequeue submit path.
func (c *Controller) CheckDevice(fingerprintID string, s policy.Settings) (*model.Fingerprint, error) {
	fp, err := c.fingerprints.GetByID(fingerprintID)
	if err != nil {
		return nil, err
	}
	if fp == nil {
		return nil, ErrUnknownDevice
	}

	if fp.Status == model.FingerprintBlocked {
		c.record(fp.ID, model.AttemptBlocked, nil, "device blocked")
		return nil, ErrDeviceBlocked
	}

	now := c.now()
	if fp.CooldownExpires.Valid && fp.CooldownExpires.Int64 > now {
		remaining := fp.CooldownExpires.Int64 - now
		c.record(fp.ID, model.AttemptRateLimited, nil, "cooldown active")
		return nil, &CooldownError{RemainingSec: remaining}
	}

	if s.SongsBeforeCooldown > 0 && s.CooldownDuration > 0 {
		count, err := c.attempts.CountSuccessSince(fp.ID, now-s.CooldownDuration)
		if err != nil {
			return nil, err
		}
		if count >= s.SongsBeforeCooldown {
			expires := now + s.CooldownDuration
			if err := c.fingerprints.SetCooldown(fp.ID, expires); err != nil {
				logger.Error("failed to set cooldown", logger.String("fingerprint_id", fp.ID), logger.ErrorField(err))
			}
			c.record(fp.ID, model.AttemptRateLimited, nil, "quota exhausted")
			return nil, &CooldownError{RemainingSec: s.CooldownDuration}
		}
	}

	return fp, nil
}

// ResolveTrack parses a track reference and loads its metadata.
func (c *Controller) ResolveTrack(ctx context.Context, trackRef string) (*model.TrackMetadata, error) {
	trackID, err := spotify.ParseTrackRef(trackRef)
	if err != nil {
		return nil, ErrInvalidReference
	}

	track, err := c.gateway.GetTrack(ctx, trackID)
	if err != nil {
		if errors.Is(err, spotify.ErrTrackNotFound) {
			return nil, ErrInvalidReference
		}
		return nil, err
	}
	return track, nil
}

// CheckTrackPolicy applies the content filters: denylist, explicit flag,
// duration cap. Used by both the direct path and prequeue submission.
func (c *Controller) CheckTrackPolicy(track *model.TrackMetadata, s policy.Settings) error {
	isBanned, err := c.banned.IsBanned(track.ID)
	if err != nil {
		return err
	}
	if isBanned {
		return ErrTrackBanned
	}

	if s.BanExplicit && track.Explicit {
		return ErrExplicitBlocked
	}

	if s.MaxSongDurationSec > 0 {
		durationSec := track.DurationMS / 1000
		if durationSec > s.MaxSongDurationSec {
			return &TooLongError{DurationSec: durationSec, LimitSec: s.MaxSongDurationSec}
		}
	}
	return nil
}

// IsDuplicate reports whether the track is already playing or queued.
// The queue read is best effort: when the provider is unreachable the
// check is skipped rather than blocking the request.
func (c *Controller) IsDuplicate(ctx context.Context, trackID string) bool {
	snapshot, err := c.gateway.GetQueue(ctx)
	if err != nil {
		logger.Warn("duplicate check skipped, queue unavailable", logger.ErrorField(err))
		return false
	}
	return snapshot.Contains(trackID)
}

// Admit runs the full pipeline for one request and, on success, enqueues
// the track. The returned metadata describes the admitted track.
func (c *Controller) Admit(ctx context.Context, req Request) (*model.TrackMetadata, error) {
	s := req.Settings
	if !s.QueueingEnabled {
		return nil, ErrServiceDisabled
	}

	// With fingerprinting off there is no device to check or throttle;
	// attempts are still logged under whatever id the client sent.
	fpID := req.FingerprintID
	if s.FingerprintEnabled {
		fp, err := c.CheckDevice(req.FingerprintID, s)
		if err != nil {
			return nil, err
		}
		fpID = fp.ID
	} else if fpID == "" {
		fpID = "anonymous"
	}

	track, err := c.ResolveTrack(ctx, req.TrackRef)
	if err != nil {
		return nil, err
	}

	if err := c.CheckTrackPolicy(track, s); err != nil {
		switch {
		case errors.Is(err, ErrTrackBanned):
			c.record(fpID, model.AttemptBanned, track, "track banned")
		case errors.Is(err, ErrExplicitBlocked):
			c.record(fpID, model.AttemptBlocked, track, "explicit blocked")
		default:
			var tooLong *TooLongError
			if errors.As(err, &tooLong) {
				c.record(fpID, model.AttemptBlocked, track, tooLong.Error())
			}
		}
		return nil, err
	}

	if c.IsDuplicate(ctx, track.ID) {
		c.record(fpID, model.AttemptBlocked, track, "already in queue")
		return nil, ErrDuplicateInQueue
	}

	if err := c.Enqueue(ctx, fpID, track, s); err != nil {
		return nil, err
	}
	return track, nil
}

// Enqueue pushes a resolved, policy-cleared track to the provider and
// commits the success bookkeeping. Also used by prequeue approval, which
// has already done its own policy pass.
func (c *Controller) Enqueue(ctx context.Context, fingerprintID string, track *model.TrackMetadata, s policy.Settings) error {
	if err := c.gateway.AddToQueue(ctx, track.URI); err != nil {
		switch {
		case errors.Is(err, spotify.ErrNoActiveDevice):
			c.record(fingerprintID, model.AttemptError, track, "no active device")
			return ErrNoActiveDevice
		case errors.Is(err, spotify.ErrNotConnected):
			c.record(fingerprintID, model.AttemptError, track, "not connected")
			return ErrNotConnected
		default:
			c.record(fingerprintID, model.AttemptError, track, err.Error())
			return err
		}
	}

	now := c.now()
	c.record(fingerprintID, model.AttemptSuccess, track, "")
	if err := c.fingerprints.UpdateLastQueueAttempt(fingerprintID, now); err != nil {
		logger.Error("failed to update last queue attempt", logger.String("fingerprint_id", fingerprintID), logger.ErrorField(err))
	}

	// Recount after commit: when this success fills the quota, start the
	// cooldown immediately instead of on the next attempt.
	if s.SongsBeforeCooldown > 0 && s.CooldownDuration > 0 {
		count, err := c.attempts.CountSuccessSince(fingerprintID, now-s.CooldownDuration)
		if err != nil {
			logger.Error("failed to recount quota window", logger.String("fingerprint_id", fingerprintID), logger.ErrorField(err))
		} else if count >= s.SongsBeforeCooldown {
			if err := c.fingerprints.SetCooldown(fingerprintID, now+s.CooldownDuration); err != nil {
				logger.Error("failed to set cooldown", logger.String("fingerprint_id", fingerprintID), logger.ErrorField(err))
			}
		}
	}

	logger.Info("track queued",
		logger.String("fingerprint_id", fingerprintID),
		logger.String("track_id", track.ID),
		logger.String("track_name", track.Name))

	if c.onEnqueued != nil {
		c.onEnqueued(track)
	}
	return nil
}
