package apifakes

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/veloflux/go-session/api"
	"github.com/veloflux/go-session/session"
	"github.com/veloflux/go-session/users"
)

var _ session.API = (*FakeAPI)(nil)

// FakeAPI is an in-memory stand-in for the backend. Every method counts
// its calls so tests can prove an operation made (or skipped) a network
// round trip.
type FakeAPI struct {
	lock sync.Mutex

	passwords map[string]string      // email -> password
	profiles  map[string]*users.User // email -> profile
	tokens    map[string]string      // token -> email

	FailRefresh   bool
	FailProfile   bool
	FailUpdate    bool
	LegacyLogin   bool // include user_id/tenant_id in the login response
	SparseProfile bool // omit user_id/tenant_id from profile responses

	LoginCalls   int
	RefreshCalls int
	ProfileCalls int
	UpdateCalls  int
}

func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		passwords: make(map[string]string),
		profiles:  make(map[string]*users.User),
		tokens:    make(map[string]string),
	}
}

// RegisterUser seeds an account the fake will authenticate.
func (f *FakeAPI) RegisterUser(email, password string, profile *users.User) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.passwords[email] = password
	f.profiles[email] = profile
}

// IssueToken mints a valid token for an already-registered user, as if a
// login had happened elsewhere.
func (f *FakeAPI) IssueToken(email string) string {
	f.lock.Lock()
	defer f.lock.Unlock()
	tok := "tok-" + uuid.NewString()
	f.tokens[tok] = email
	return tok
}

func (f *FakeAPI) Login(_ context.Context, email, password string) (*api.LoginResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.LoginCalls++

	stored, ok := f.passwords[email]
	if !ok || stored != password {
		return nil, api.InvalidCredentialsErr
	}

	tok := "tok-" + uuid.NewString()
	f.tokens[tok] = email
	res := &api.LoginResponse{Token: tok}
	if f.LegacyLogin {
		res.UserID = f.profiles[email].UserID
		res.TenantID = f.profiles[email].TenantID
	}
	return res, nil
}

func (f *FakeAPI) Refresh(_ context.Context, tok string) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.RefreshCalls++

	if f.FailRefresh {
		return "", errors.New("refresh unavailable")
	}
	email, ok := f.tokens[tok]
	if !ok {
		return "", api.UnauthorizedErr
	}
	next := "tok-" + uuid.NewString()
	f.tokens[next] = email
	return next, nil
}

func (f *FakeAPI) Profile(_ context.Context, tok string) (*users.User, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.ProfileCalls++

	if f.FailProfile {
		return nil, errors.New("profile unavailable")
	}
	email, ok := f.tokens[tok]
	if !ok {
		return nil, api.UnauthorizedErr
	}
	profile := *f.profiles[email]
	if f.SparseProfile {
		profile.UserID = ""
		profile.TenantID = ""
	}
	return &profile, nil
}

func (f *FakeAPI) UpdateProfile(_ context.Context, tok, firstName, lastName string) (*users.User, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.UpdateCalls++

	if f.FailUpdate {
		return nil, errors.New("update rejected")
	}
	email, ok := f.tokens[tok]
	if !ok {
		return nil, api.UnauthorizedErr
	}
	f.profiles[email].FirstName = firstName
	f.profiles[email].LastName = lastName
	profile := *f.profiles[email]
	return &profile, nil
}
