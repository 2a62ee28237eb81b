package admission

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"spotiqueue/core/policy"
	"spotiqueue/core/spotify"
	"spotiqueue/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTrackID = "4cOdK2wGLETKBW3PvgPWqT"

type memFingerprints struct {
	byID map[string]*model.Fingerprint
}

func (m *memFingerprints) Create(fp *model.Fingerprint) error {
	m.byID[fp.ID] = fp
	return nil
}

func (m *memFingerprints) GetByID(id string) (*model.Fingerprint, error) {
	fp, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *fp
	return &cp, nil
}

func (m *memFingerprints) SetUsernameIfEmpty(id, username string) error {
	if fp, ok := m.byID[id]; ok && (!fp.Username.Valid || fp.Username.String == "") {
		fp.Username = sql.NullString{String: username, Valid: true}
	}
	return nil
}

func (m *memFingerprints) BindGithubIdentity(id, ghID, ghUser, ghAvatar string) error   { return nil }
func (m *memFingerprints) BindHackClubIdentity(id, hcID, hcUser, hcAvatar string) error { return nil }

func (m *memFingerprints) SetStatus(id, status string) error {
	if fp, ok := m.byID[id]; ok {
		fp.Status = status
	}
	return nil
}

func (m *memFingerprints) SetCooldown(id string, expires int64) error {
	fp, ok := m.byID[id]
	if !ok {
		return nil
	}
	if fp.CooldownExpires.Valid && fp.CooldownExpires.Int64 >= expires {
		return nil
	}
	fp.CooldownExpires = sql.NullInt64{Int64: expires, Valid: true}
	return nil
}

func (m *memFingerprints) ClearCooldown(id string) error {
	if fp, ok := m.byID[id]; ok {
		fp.CooldownExpires = sql.NullInt64{}
	}
	return nil
}

func (m *memFingerprints) ClearAllCooldowns() error {
	for _, fp := range m.byID {
		fp.CooldownExpires = sql.NullInt64{}
	}
	return nil
}

func (m *memFingerprints) UpdateLastQueueAttempt(id string, ts int64) error {
	if fp, ok := m.byID[id]; ok {
		fp.LastQueueAttempt = sql.NullInt64{Int64: ts, Valid: true}
	}
	return nil
}

func (m *memFingerprints) ListDevices() ([]*model.DeviceSummary, error) { return nil, nil }
func (m *memFingerprints) DeleteAll() error                             { return nil }

type memAttempts struct {
	rows []*model.QueueAttempt
}

func (m *memAttempts) Insert(a *model.QueueAttempt) error {
	a.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, a)
	return nil
}

func (m *memAttempts) CountSuccessSince(fingerprintID string, since int64) (int, error) {
	count := 0
	for _, a := range m.rows {
		if a.FingerprintID == fingerprintID && a.Status == model.AttemptSuccess && a.Timestamp > since {
			count++
		}
	}
	return count, nil
}

func (m *memAttempts) RecentActivity(limit int) ([]*model.ActivityEntry, error) { return nil, nil }
func (m *memAttempts) Stats() (*model.AttemptStats, error)                      { return nil, nil }
func (m *memAttempts) TopTracks(limit int) ([]*model.TrackCount, error)         { return nil, nil }
func (m *memAttempts) DeleteAll() error                                         { return nil }

func (m *memAttempts) byStatus(status string) []*model.QueueAttempt {
	var out []*model.QueueAttempt
	for _, a := range m.rows {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out
}

type memBanned struct {
	ids map[string]bool
}

func (m *memBanned) Add(b *model.BannedTrack) error   { m.ids[b.TrackID] = true; return nil }
func (m *memBanned) Remove(trackID string) error      { delete(m.ids, trackID); return nil }
func (m *memBanned) IsBanned(id string) (bool, error) { return m.ids[id], nil }
func (m *memBanned) List() ([]*model.BannedTrack, error) {
	return nil, nil
}

type fakeGateway struct {
	track      *model.TrackMetadata
	trackErr   error
	queue      *model.QueueSnapshot
	queueErr   error
	enqueueErr error
	enqueued   []string
}

func (g *fakeGateway) GetTrack(ctx context.Context, id string) (*model.TrackMetadata, error) {
	if g.trackErr != nil {
		return nil, g.trackErr
	}
	return g.track, nil
}

func (g *fakeGateway) AddToQueue(ctx context.Context, uri string) error {
	if g.enqueueErr != nil {
		return g.enqueueErr
	}
	g.enqueued = append(g.enqueued, uri)
	return nil
}

func (g *fakeGateway) GetQueue(ctx context.Context) (*model.QueueSnapshot, error) {
	if g.queueErr != nil {
		return nil, g.queueErr
	}
	if g.queue == nil {
		return &model.QueueSnapshot{}, nil
	}
	return g.queue, nil
}

func (g *fakeGateway) Connected() bool { return true }

func testTrack() *model.TrackMetadata {
	return &model.TrackMetadata{
		ID:         testTrackID,
		Name:       "Test Song",
		Artists:    "Test Artist",
		DurationMS: 200_000,
		URI:        "spotify:track:" + testTrackID,
	}
}

type fixture struct {
	ctrl    *Controller
	fps     *memFingerprints
	att     *memAttempts
	ban     *memBanned
	gateway *fakeGateway
	clock   int64
}

func newFixture() *fixture {
	f := &fixture{
		fps:     &memFingerprints{byID: map[string]*model.Fingerprint{}},
		att:     &memAttempts{},
		ban:     &memBanned{ids: map[string]bool{}},
		gateway: &fakeGateway{track: testTrack()},
		clock:   1_000_000,
	}
	f.fps.byID["fp1"] = &model.Fingerprint{ID: "fp1", Status: model.FingerprintActive, FirstSeen: 1, CreatedAt: 1}
	f.ctrl = NewController(f.fps, f.att, f.ban, f.gateway)
	f.ctrl.now = func() int64 { return f.clock }
	return f
}

func defaultSettings() policy.Settings {
	return policy.Settings{
		QueueingEnabled:     true,
		FingerprintEnabled:  true,
		CooldownDuration:    300,
		SongsBeforeCooldown: 1,
	}
}

func (f *fixture) admit() (*model.TrackMetadata, error) {
	return f.ctrl.Admit(context.Background(), Request{
		FingerprintID: "fp1",
		TrackRef:      testTrackID,
		Settings:      defaultSettings(),
	})
}

func TestAdmitSuccess(t *testing.T) {
	f := newFixture()

	track, err := f.admit()
	require.NoError(t, err)
	assert.Equal(t, testTrackID, track.ID)
	assert.Equal(t, []string{"spotify:track:" + testTrackID}, f.gateway.enqueued)

	successes := f.att.byStatus(model.AttemptSuccess)
	require.Len(t, successes, 1)
	assert.Equal(t, "fp1", successes[0].FingerprintID)

	// Quota of one means the success starts the cooldown immediately.
	fp := f.fps.byID["fp1"]
	require.True(t, fp.CooldownExpires.Valid)
	assert.Equal(t, f.clock+300, fp.CooldownExpires.Int64)
	assert.True(t, fp.LastQueueAttempt.Valid)
}

func TestAdmitServiceDisabled(t *testing.T) {
	f := newFixture()
	s := defaultSettings()
	s.QueueingEnabled = false

	_, err := f.ctrl.Admit(context.Background(), Request{FingerprintID: "fp1", TrackRef: testTrackID, Settings: s})
	assert.ErrorIs(t, err, ErrServiceDisabled)
	assert.Empty(t, f.att.rows)
}

func TestAdmitUnknownDevice(t *testing.T) {
	f := newFixture()

	_, err := f.ctrl.Admit(context.Background(), Request{FingerprintID: "ghost", TrackRef: testTrackID, Settings: defaultSettings()})
	assert.ErrorIs(t, err, ErrUnknownDevice)
	assert.Empty(t, f.att.rows)
}

func TestAdmitBlockedDeviceRecordsOneAttempt(t *testing.T) {
	f := newFixture()
	f.fps.byID["fp1"].Status = model.FingerprintBlocked

	_, err := f.admit()
	assert.ErrorIs(t, err, ErrDeviceBlocked)

	require.Len(t, f.att.rows, 1)
	assert.Equal(t, model.AttemptBlocked, f.att.rows[0].Status)
	assert.Empty(t, f.gateway.enqueued)
}

func TestAdmitActiveCooldown(t *testing.T) {
	f := newFixture()
	f.fps.byID["fp1"].CooldownExpires = sql.NullInt64{Int64: f.clock + 120, Valid: true}

	_, err := f.admit()

	var cd *CooldownError
	require.ErrorAs(t, err, &cd)
	assert.Equal(t, int64(120), cd.RemainingSec)
	require.Len(t, f.att.rows, 1)
	assert.Equal(t, model.AttemptRateLimited, f.att.rows[0].Status)
}

func TestAdmitQuotaExhaustedSetsCooldown(t *testing.T) {
	f := newFixture()
	// One success just inside the trailing window.
	f.att.rows = append(f.att.rows, &model.QueueAttempt{
		FingerprintID: "fp1", Status: model.AttemptSuccess, Timestamp: f.clock - 100,
	})

	_, err := f.admit()

	var cd *CooldownError
	require.ErrorAs(t, err, &cd)
	assert.Equal(t, int64(300), cd.RemainingSec)

	fp := f.fps.byID["fp1"]
	require.True(t, fp.CooldownExpires.Valid)
	assert.Equal(t, f.clock+300, fp.CooldownExpires.Int64)
}

func TestAdmitSuccessOutsideWindowPasses(t *testing.T) {
	f := newFixture()
	// Old success, outside the 300s window.
	f.att.rows = append(f.att.rows, &model.QueueAttempt{
		FingerprintID: "fp1", Status: model.AttemptSuccess, Timestamp: f.clock - 301,
	})

	_, err := f.admit()
	assert.NoError(t, err)
}

func TestAdmitInvalidReference(t *testing.T) {
	f := newFixture()

	_, err := f.ctrl.Admit(context.Background(), Request{FingerprintID: "fp1", TrackRef: "not a track", Settings: defaultSettings()})
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestAdmitTrackNotFound(t *testing.T) {
	f := newFixture()
	f.gateway.trackErr = spotify.ErrTrackNotFound

	_, err := f.admit()
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestAdmitBannedTrack(t *testing.T) {
	f := newFixture()
	f.ban.ids[testTrackID] = true

	_, err := f.admit()
	assert.ErrorIs(t, err, ErrTrackBanned)

	require.Len(t, f.att.rows, 1)
	assert.Equal(t, model.AttemptBanned, f.att.rows[0].Status)
	assert.Equal(t, testTrackID, f.att.rows[0].TrackID.String)
}

func TestAdmitExplicitBlocked(t *testing.T) {
	f := newFixture()
	f.gateway.track.Explicit = true
	s := defaultSettings()
	s.BanExplicit = true

	_, err := f.ctrl.Admit(context.Background(), Request{FingerprintID: "fp1", TrackRef: testTrackID, Settings: s})
	assert.ErrorIs(t, err, ErrExplicitBlocked)
}

func TestAdmitExplicitAllowedWhenFilterOff(t *testing.T) {
	f := newFixture()
	f.gateway.track.Explicit = true

	_, err := f.admit()
	assert.NoError(t, err)
}

func TestAdmitDurationCap(t *testing.T) {
	f := newFixture()
	f.gateway.track.DurationMS = 601_000
	s := defaultSettings()
	s.MaxSongDurationSec = 600

	_, err := f.ctrl.Admit(context.Background(), Request{FingerprintID: "fp1", TrackRef: testTrackID, Settings: s})

	var tooLong *TooLongError
	require.ErrorAs(t, err, &tooLong)
	assert.Equal(t, 601, tooLong.DurationSec)
	assert.Equal(t, 600, tooLong.LimitSec)
}

func TestAdmitDurationCapZeroDisables(t *testing.T) {
	f := newFixture()
	f.gateway.track.DurationMS = 3_600_000
	s := defaultSettings()
	s.MaxSongDurationSec = 0

	_, err := f.ctrl.Admit(context.Background(), Request{FingerprintID: "fp1", TrackRef: testTrackID, Settings: s})
	assert.NoError(t, err)
}

func TestAdmitDuplicateInQueue(t *testing.T) {
	f := newFixture()
	f.gateway.queue = &model.QueueSnapshot{Queue: []model.TrackMetadata{*testTrack()}}

	_, err := f.admit()
	assert.ErrorIs(t, err, ErrDuplicateInQueue)
	assert.Empty(t, f.gateway.enqueued)

	require.Len(t, f.att.rows, 1)
	assert.Equal(t, model.AttemptBlocked, f.att.rows[0].Status)
}

func TestAdmitDuplicateCheckFailsOpen(t *testing.T) {
	f := newFixture()
	f.gateway.queueErr = errors.New("provider down")

	_, err := f.admit()
	assert.NoError(t, err)
	assert.Len(t, f.gateway.enqueued, 1)
}

func TestAdmitNoActiveDevice(t *testing.T) {
	f := newFixture()
	f.gateway.enqueueErr = spotify.ErrNoActiveDevice

	_, err := f.admit()
	assert.ErrorIs(t, err, ErrNoActiveDevice)

	require.Len(t, f.att.rows, 1)
	assert.Equal(t, model.AttemptError, f.att.rows[0].Status)
}

func TestAdmitOnEnqueuedHook(t *testing.T) {
	f := newFixture()
	var got *model.TrackMetadata
	f.ctrl.OnEnqueued(func(track *model.TrackMetadata) { got = track })

	_, err := f.admit()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, testTrackID, got.ID)
}

func TestAdmitFingerprintingDisabledSkipsDeviceChecks(t *testing.T) {
	f := newFixture()
	s := defaultSettings()
	s.FingerprintEnabled = false

	// No such device, but with fingerprinting off nobody checks.
	_, err := f.ctrl.Admit(context.Background(), Request{FingerprintID: "ghost", TrackRef: testTrackID, Settings: s})
	require.NoError(t, err)

	successes := f.att.byStatus(model.AttemptSuccess)
	require.Len(t, successes, 1)
	assert.Equal(t, "ghost", successes[0].FingerprintID)
}

func TestQuotaOfThree(t *testing.T) {
	f := newFixture()
	s := defaultSettings()
	s.SongsBeforeCooldown = 3

	for i := 0; i < 2; i++ {
		_, err := f.ctrl.Admit(context.Background(), Request{FingerprintID: "fp1", TrackRef: testTrackID, Settings: s})
		require.NoError(t, err)
		f.clock += 10
	}
	// Two successes in the window, no cooldown yet.
	assert.False(t, f.fps.byID["fp1"].CooldownExpires.Valid)

	_, err := f.ctrl.Admit(context.Background(), Request{FingerprintID: "fp1", TrackRef: testTrackID, Settings: s})
	require.NoError(t, err)
	// Third success fills the quota; cooldown starts now.
	assert.True(t, f.fps.byID["fp1"].CooldownExpires.Valid)

	f.clock += 10
	_, err = f.ctrl.Admit(context.Background(), Request{FingerprintID: "fp1", TrackRef: testTrackID, Settings: s})
	var cd *CooldownError
	assert.ErrorAs(t, err, &cd)
}
