package prequeue

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"spotiqueue/core/admission"
	"spotiqueue/core/policy"
	"spotiqueue/model"
	"spotiqueue/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTrackID = "4cOdK2wGLETKBW3PvgPWqT"

type memEntries struct {
	byID map[string]*model.PrequeueEntry
}

func (m *memEntries) Insert(e *model.PrequeueEntry) error {
	for _, existing := range m.byID {
		if existing.TrackID == e.TrackID && existing.Status == model.PrequeuePending {
			return repository.ErrDuplicatePending
		}
	}
	cp := *e
	m.byID[e.ID] = &cp
	return nil
}

func (m *memEntries) GetByID(id string) (*model.PrequeueEntry, error) {
	e, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *memEntries) ListPending() ([]*model.PrequeueEntry, error) {
	var out []*model.PrequeueEntry
	for _, e := range m.byID {
		if e.Status == model.PrequeuePending {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memEntries) resolve(id, status, by string) (bool, error) {
	e, ok := m.byID[id]
	if !ok || e.Status != model.PrequeuePending {
		return false, nil
	}
	e.Status = status
	e.ApprovedBy = sql.NullString{String: by, Valid: true}
	return true, nil
}

func (m *memEntries) MarkApproved(id, by string) (bool, error) {
	return m.resolve(id, model.PrequeueApproved, by)
}

func (m *memEntries) MarkDeclined(id, by string) (bool, error) {
	return m.resolve(id, model.PrequeueDeclined, by)
}

func (m *memEntries) DeleteAll() error {
	m.byID = map[string]*model.PrequeueEntry{}
	return nil
}

type memFingerprints struct {
	byID map[string]*model.Fingerprint
}

func (m *memFingerprints) Create(fp *model.Fingerprint) error { m.byID[fp.ID] = fp; return nil }
func (m *memFingerprints) GetByID(id string) (*model.Fingerprint, error) {
	fp, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return fp, nil
}
func (m *memFingerprints) SetUsernameIfEmpty(id, username string) error                 { return nil }
func (m *memFingerprints) BindGithubIdentity(id, a, b, c string) error                  { return nil }
func (m *memFingerprints) BindHackClubIdentity(id, a, b, c string) error                { return nil }
func (m *memFingerprints) SetStatus(id, status string) error                            { return nil }
func (m *memFingerprints) SetCooldown(id string, expires int64) error                   { return nil }
func (m *memFingerprints) ClearCooldown(id string) error                                { return nil }
func (m *memFingerprints) ClearAllCooldowns() error                                     { return nil }
func (m *memFingerprints) UpdateLastQueueAttempt(id string, ts int64) error             { return nil }
func (m *memFingerprints) ListDevices() ([]*model.DeviceSummary, error)                 { return nil, nil }
func (m *memFingerprints) DeleteAll() error                                             { return nil }

type fakeAdmitter struct {
	track      *model.TrackMetadata
	resolveErr error
	policyErr  error
	duplicate  bool
	enqueueErr error

	enqueuedFor   []string
	enqueuedTrack []*model.TrackMetadata
}

func (f *fakeAdmitter) ResolveTrack(ctx context.Context, ref string) (*model.TrackMetadata, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.track, nil
}

func (f *fakeAdmitter) CheckTrackPolicy(track *model.TrackMetadata, s policy.Settings) error {
	return f.policyErr
}

func (f *fakeAdmitter) IsDuplicate(ctx context.Context, trackID string) bool {
	return f.duplicate
}

func (f *fakeAdmitter) Enqueue(ctx context.Context, fingerprintID string, track *model.TrackMetadata, s policy.Settings) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.enqueuedFor = append(f.enqueuedFor, fingerprintID)
	f.enqueuedTrack = append(f.enqueuedTrack, track)
	return nil
}

type notification struct {
	entryID string
	track   *model.TrackMetadata
}

type fakeNotifier struct {
	notified []notification
}

func (f *fakeNotifier) Enabled() bool { return true }
func (f *fakeNotifier) NotifyPrequeue(ctx context.Context, entryID string, track *model.TrackMetadata, requestedBy string) {
	f.notified = append(f.notified, notification{entryID: entryID, track: track})
}

type wfFixture struct {
	wf       *Workflow
	entries  *memEntries
	admitter *fakeAdmitter
	notifier *fakeNotifier
}

func newWfFixture() *wfFixture {
	f := &wfFixture{
		entries:  &memEntries{byID: map[string]*model.PrequeueEntry{}},
		admitter: &fakeAdmitter{track: &model.TrackMetadata{ID: testTrackID, Name: "Test Song", Artists: "Test Artist", Album: "Test Album", DurationMS: 185000, URI: "spotify:track:" + testTrackID}},
		notifier: &fakeNotifier{},
	}
	fps := &memFingerprints{byID: map[string]*model.Fingerprint{
		"fp1": {ID: "fp1", Status: model.FingerprintActive, Username: sql.NullString{String: "dj", Valid: true}},
	}}
	f.wf = NewWorkflow(f.entries, fps, f.admitter, f.notifier)
	f.wf.now = func() int64 { return 1_000_000 }
	n := 0
	f.wf.newID = func() string { n++; return fmt.Sprintf("entry-%d", n) }
	return f
}

func enabledSettings() policy.Settings {
	return policy.Settings{PrequeueEnabled: true, SlackPrequeueEnabled: true, QueueingEnabled: true}
}

func TestSubmitCreatesPendingEntry(t *testing.T) {
	f := newWfFixture()

	entry, err := f.wf.Submit(context.Background(), "fp1", testTrackID, enabledSettings())
	require.NoError(t, err)
	assert.Equal(t, model.PrequeuePending, entry.Status)
	assert.Equal(t, testTrackID, entry.TrackID)
	assert.Equal(t, "fp1", entry.FingerprintID)
	require.Len(t, f.notifier.notified, 1)
	assert.Equal(t, entry.ID, f.notifier.notified[0].entryID)
	assert.Equal(t, 185000, f.notifier.notified[0].track.DurationMS)
}

func TestSubmitDisabled(t *testing.T) {
	f := newWfFixture()

	_, err := f.wf.Submit(context.Background(), "fp1", testTrackID, policy.Settings{})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestSubmitUnknownDevice(t *testing.T) {
	f := newWfFixture()

	_, err := f.wf.Submit(context.Background(), "ghost", testTrackID, enabledSettings())
	assert.ErrorIs(t, err, admission.ErrUnknownDevice)
}

func TestSubmitDuplicatePending(t *testing.T) {
	f := newWfFixture()

	_, err := f.wf.Submit(context.Background(), "fp1", testTrackID, enabledSettings())
	require.NoError(t, err)

	_, err = f.wf.Submit(context.Background(), "fp1", testTrackID, enabledSettings())
	assert.ErrorIs(t, err, repository.ErrDuplicatePending)
}

func TestSubmitDuplicateInLiveQueue(t *testing.T) {
	f := newWfFixture()
	f.admitter.duplicate = true

	_, err := f.wf.Submit(context.Background(), "fp1", testTrackID, enabledSettings())
	assert.ErrorIs(t, err, admission.ErrDuplicateInQueue)
}

func TestSubmitPolicyRejection(t *testing.T) {
	f := newWfFixture()
	f.admitter.policyErr = admission.ErrTrackBanned

	_, err := f.wf.Submit(context.Background(), "fp1", testTrackID, enabledSettings())
	assert.ErrorIs(t, err, admission.ErrTrackBanned)
}

func TestApproveEnqueuesForSubmitter(t *testing.T) {
	f := newWfFixture()
	entry, err := f.wf.Submit(context.Background(), "fp1", testTrackID, enabledSettings())
	require.NoError(t, err)

	approved, err := f.wf.Approve(context.Background(), entry.ID, "booth.dj", enabledSettings())
	require.NoError(t, err)
	assert.Equal(t, model.PrequeueApproved, approved.Status)
	assert.Equal(t, "booth.dj", approved.ApprovedBy.String)

	// The enqueue is attributed to the submitting device.
	require.Equal(t, []string{"fp1"}, f.admitter.enqueuedFor)
}

func TestApproveIsExactlyOnce(t *testing.T) {
	f := newWfFixture()
	entry, err := f.wf.Submit(context.Background(), "fp1", testTrackID, enabledSettings())
	require.NoError(t, err)

	_, err = f.wf.Approve(context.Background(), entry.ID, "a", enabledSettings())
	require.NoError(t, err)

	_, err = f.wf.Approve(context.Background(), entry.ID, "b", enabledSettings())
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	_, err = f.wf.Decline(context.Background(), entry.ID, "c")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	assert.Len(t, f.admitter.enqueuedFor, 1)
}

func TestDecline(t *testing.T) {
	f := newWfFixture()
	entry, err := f.wf.Submit(context.Background(), "fp1", testTrackID, enabledSettings())
	require.NoError(t, err)

	declined, err := f.wf.Decline(context.Background(), entry.ID, "booth.dj")
	require.NoError(t, err)
	assert.Equal(t, model.PrequeueDeclined, declined.Status)
	assert.Empty(t, f.admitter.enqueuedFor)

	// Once declined, the same track may be submitted again.
	_, err = f.wf.Submit(context.Background(), "fp1", testTrackID, enabledSettings())
	assert.NoError(t, err)
}

func TestApproveMissingEntry(t *testing.T) {
	f := newWfFixture()

	_, err := f.wf.Approve(context.Background(), "nope", "a", enabledSettings())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatus(t *testing.T) {
	f := newWfFixture()
	entry, err := f.wf.Submit(context.Background(), "fp1", testTrackID, enabledSettings())
	require.NoError(t, err)

	got, err := f.wf.Status(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)

	_, err = f.wf.Status("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
