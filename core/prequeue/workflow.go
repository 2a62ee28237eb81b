package prequeue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"spotiqueue/core/admission"
	"spotiqueue/core/policy"
	"spotiqueue/logger"
	"spotiqueue/model"
	"spotiqueue/repository"

	"github.com/google/uuid"
)

// Workflow failures.
var (
	ErrDisabled         = errors.New("prequeue is not enabled")
	ErrNotFound         = errors.New("prequeue entry not found")
	ErrAlreadyProcessed = errors.New("this request was already processed")
)

// Admitter is the slice of the admission controller the workflow uses.
type Admitter interface {
	ResolveTrack(ctx context.Context, trackRef string) (*model.TrackMetadata, error)
	CheckTrackPolicy(track *model.TrackMetadata, s policy.Settings) error
	IsDuplicate(ctx context.Context, trackID string) bool
	Enqueue(ctx context.Context, fingerprintID string, track *model.TrackMetadata, s policy.Settings) error
}

// Notifier announces new entries to reviewers. It receives the resolved
// track metadata so the message can carry album and duration details the
// stored entry does not.
type Notifier interface {
	Enabled() bool
	NotifyPrequeue(ctx context.Context, entryID string, track *model.TrackMetadata, requestedBy string)
}

// Workflow holds tracks for human approval before they reach the
// playback queue. Submissions skip the rate limiter; the human review
// is the throttle on this path.
type Workflow struct {
	entries      repository.PrequeueRepository
	fingerprints repository.FingerprintRepository
	admitter     Admitter
	notifier     Notifier

	now   func() int64
	newID func() string
}

// NewWorkflow wires a prequeue workflow. notifier may be nil.
func NewWorkflow(entries repository.PrequeueRepository, fingerprints repository.FingerprintRepository,
	admitter Admitter, notifier Notifier) *Workflow {
	return &Workflow{
		entries:      entries,
		fingerprints: fingerprints,
		admitter:     admitter,
		notifier:     notifier,
		now:          func() int64 { return time.Now().Unix() },
		newID:        func() string { return uuid.NewString() },
	}
}

// Submit creates a pending entry for review. The track must clear the
// same content policy as a direct queue request; a track already playing
// or already pending is rejected.
func (w *Workflow) Submit(ctx context.Context, fingerprintID, trackRef string, s policy.Settings) (*model.PrequeueEntry, error) {
	if !s.PrequeueEnabled {
		return nil, ErrDisabled
	}

	fp, err := w.fingerprints.GetByID(fingerprintID)
	if err != nil {
		return nil, err
	}
	if fp == nil {
		return nil, admission.ErrUnknownDevice
	}
	if fp.Status == model.FingerprintBlocked {
		return nil, admission.ErrDeviceBlocked
	}

	track, err := w.admitter.ResolveTrack(ctx, trackRef)
	if err != nil {
		return nil, err
	}
	if err := w.admitter.CheckTrackPolicy(track, s); err != nil {
		return nil, err
	}
	if w.admitter.IsDuplicate(ctx, track.ID) {
		return nil, admission.ErrDuplicateInQueue
	}

	entry := &model.PrequeueEntry{
		ID:            w.newID(),
		FingerprintID: fp.ID,
		TrackID:       track.ID,
		TrackName:     track.Name,
		ArtistName:    track.Artists,
		Status:        model.PrequeuePending,
		CreatedAt:     w.now(),
	}
	if track.AlbumArt != "" {
		entry.AlbumArt = sql.NullString{String: track.AlbumArt, Valid: true}
	}

	if err := w.entries.Insert(entry); err != nil {
		return nil, err
	}

	if w.notifier != nil && w.notifier.Enabled() && s.SlackPrequeueEnabled {
		w.notifier.NotifyPrequeue(ctx, entry.ID, track, fp.DisplayName())
	}

	logger.Info("prequeue entry submitted",
		logger.String("entry_id", entry.ID),
		logger.String("track_id", entry.TrackID),
		logger.String("fingerprint_id", fp.ID))
	return entry, nil
}

// Approve resolves a pending entry and pushes its track to the queue.
// The success is attributed to the submitting device, not the reviewer.
func (w *Workflow) Approve(ctx context.Context, entryID, approvedBy string, s policy.Settings) (*model.PrequeueEntry, error) {
	ok, err := w.entries.MarkApproved(entryID, approvedBy)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, w.resolveConflict(entryID)
	}

	entry, err := w.entries.GetByID(entryID)
	if err != nil {
		return nil, err
	}

	// Re-resolve so the enqueue uses fresh provider metadata; the stored
	// row may predate a catalog change.
	track, err := w.admitter.ResolveTrack(ctx, entry.TrackID)
	if err != nil {
		return nil, err
	}

	if err := w.admitter.Enqueue(ctx, entry.FingerprintID, track, s); err != nil {
		return nil, err
	}

	logger.Info("prequeue entry approved",
		logger.String("entry_id", entry.ID),
		logger.String("approved_by", approvedBy))
	return entry, nil
}

// Decline resolves a pending entry without queueing it.
func (w *Workflow) Decline(ctx context.Context, entryID, declinedBy string) (*model.PrequeueEntry, error) {
	ok, err := w.entries.MarkDeclined(entryID, declinedBy)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, w.resolveConflict(entryID)
	}

	logger.Info("prequeue entry declined",
		logger.String("entry_id", entryID),
		logger.String("declined_by", declinedBy))
	return w.entries.GetByID(entryID)
}

func (w *Workflow) resolveConflict(entryID string) error {
	entry, err := w.entries.GetByID(entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return ErrNotFound
	}
	return ErrAlreadyProcessed
}

// Pending lists entries awaiting review, oldest first.
func (w *Workflow) Pending() ([]*model.PrequeueEntry, error) {
	return w.entries.ListPending()
}

// Status returns one entry, or ErrNotFound.
func (w *Workflow) Status(entryID string) (*model.PrequeueEntry, error) {
	entry, err := w.entries.GetByID(entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNotFound
	}
	return entry, nil
}
