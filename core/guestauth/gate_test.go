package guestauth

import (
	"database/sql"
	"testing"

	"spotiqueue/core/policy"
	"spotiqueue/model"

	"github.com/stretchr/testify/assert"
)

func fpWithGithub() *model.Fingerprint {
	return &model.Fingerprint{
		ID:             "fp1",
		GithubID:       sql.NullString{String: "12345", Valid: true},
		GithubUsername: sql.NullString{String: "octocat", Valid: true},
	}
}

func TestCheckPasswordGateComesFirst(t *testing.T) {
	s := policy.Settings{UserPassword: "secret", RequireGithubAuth: true, RequireUsername: true}
	p := Providers{Github: true}

	err := Check(s, p, Identity{Fingerprint: &model.Fingerprint{ID: "fp1"}})
	assert.ErrorIs(t, err, ErrPasswordRequired)

	err = Check(s, p, Identity{Fingerprint: &model.Fingerprint{ID: "fp1"}, Password: "secret"})
	assert.ErrorIs(t, err, ErrGithubRequired)
}

func TestCheckUnconfiguredProviderSkipped(t *testing.T) {
	s := policy.Settings{RequireGithubAuth: true}

	err := Check(s, Providers{Github: false}, Identity{Fingerprint: &model.Fingerprint{ID: "fp1"}})
	assert.NoError(t, err)
}

func TestCheckVerifiedIdentityBypassesUsername(t *testing.T) {
	s := policy.Settings{RequireUsername: true}

	err := Check(s, Providers{Github: true}, Identity{Fingerprint: fpWithGithub()})
	assert.NoError(t, err)
}

func TestCheckUsernameRequired(t *testing.T) {
	s := policy.Settings{RequireUsername: true}
	anon := &model.Fingerprint{ID: "fp1"}

	err := Check(s, Providers{}, Identity{Fingerprint: anon})
	assert.ErrorIs(t, err, ErrUsernameRequired)

	err = Check(s, Providers{}, Identity{Fingerprint: anon, Username: "dj"})
	assert.NoError(t, err)

	named := &model.Fingerprint{ID: "fp2", Username: sql.NullString{String: "dj", Valid: true}}
	err = Check(s, Providers{}, Identity{Fingerprint: named})
	assert.NoError(t, err)
}

func TestStatusFor(t *testing.T) {
	s := policy.Settings{RequireGithubAuth: true, RequireUsername: true, UserPassword: "pw"}
	st := StatusFor(s, Providers{Github: true}, fpWithGithub())

	assert.True(t, st.PasswordRequired)
	assert.True(t, st.GithubRequired)
	assert.True(t, st.GithubConfigured)
	assert.True(t, st.GithubVerified)
	assert.False(t, st.HackClubRequired)
	assert.True(t, st.UsernameRequired)
	assert.True(t, st.HasUsername)
}
