package guestauth

import (
	"errors"

	"spotiqueue/core/policy"
	"spotiqueue/model"
)

// Gate failures, in the order the chain evaluates them. The chain checks
// the shared password first, then identity verification, then the
// username; a device that clears an earlier link never sees a later
// failure out of order.
var (
	ErrPasswordRequired = errors.New("a password is required to queue songs")
	ErrGithubRequired   = errors.New("sign in with GitHub to queue songs")
	ErrHackClubRequired = errors.New("sign in with Hack Club to queue songs")
	ErrUsernameRequired = errors.New("a username is required to queue songs")
)

// Providers reports which OAuth providers the server is configured for.
// A requirement for an unconfigured provider is unenforceable and skipped.
type Providers struct {
	Github   bool
	HackClub bool
}

// Identity is what a request presents to the gate.
type Identity struct {
	Fingerprint *model.Fingerprint
	Username    string
	Password    string
}

// Status is the gate state surfaced to clients so they can render the
// right prompt before attempting to queue.
type Status struct {
	PasswordRequired   bool `json:"password_required"`
	GithubRequired     bool `json:"github_required"`
	GithubConfigured   bool `json:"github_configured"`
	GithubVerified     bool `json:"github_verified"`
	HackClubRequired   bool `json:"hackclub_required"`
	HackClubConfigured bool `json:"hackclub_configured"`
	HackClubVerified   bool `json:"hackclub_verified"`
	UsernameRequired   bool `json:"username_required"`
	HasUsername        bool `json:"has_username"`
}

func githubVerified(fp *model.Fingerprint) bool {
	return fp != nil && fp.GithubID.Valid && fp.GithubID.String != ""
}

func hackclubVerified(fp *model.Fingerprint) bool {
	return fp != nil && fp.HackClubID.Valid && fp.HackClubID.String != ""
}

// Check runs the gate chain for one request. A nil error means the
// request may proceed to admission.
func Check(s policy.Settings, p Providers, id Identity) error {
	if s.UserPassword != "" && id.Password != s.UserPassword {
		return ErrPasswordRequired
	}

	if s.RequireGithubAuth && p.Github && !githubVerified(id.Fingerprint) {
		return ErrGithubRequired
	}
	if s.RequireHackClubAuth && p.HackClub && !hackclubVerified(id.Fingerprint) {
		return ErrHackClubRequired
	}

	// A verified provider identity supplies a display name, so it
	// satisfies the username requirement on its own.
	if s.RequireUsername {
		if githubVerified(id.Fingerprint) || hackclubVerified(id.Fingerprint) {
			return nil
		}
		if id.Username == "" && (id.Fingerprint == nil || id.Fingerprint.DisplayName() == "") {
			return ErrUsernameRequired
		}
	}
	return nil
}

// StatusFor describes the gate for a device without enforcing it.
func StatusFor(s policy.Settings, p Providers, fp *model.Fingerprint) Status {
	st := Status{
		PasswordRequired:   s.UserPassword != "",
		GithubRequired:     s.RequireGithubAuth && p.Github,
		GithubConfigured:   p.Github,
		GithubVerified:     githubVerified(fp),
		HackClubRequired:   s.RequireHackClubAuth && p.HackClub,
		HackClubConfigured: p.HackClub,
		HackClubVerified:   hackclubVerified(fp),
		UsernameRequired:   s.RequireUsername,
		HasUsername:        fp != nil && fp.DisplayName() != "",
	}
	return st
}
