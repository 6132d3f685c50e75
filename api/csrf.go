package api

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/veloflux/go-session/storage"
)

const csrfHeader = "X-CSRF-Token"

// CSRFProvider hands out the per-installation CSRF token attached to
// every mutating request. The token is generated once and persisted under
// storage.CSRFKey so all tabs of one installation present the same value.
type CSRFProvider struct {
	store storage.Store
}

func NewCSRFProvider(store storage.Store) *CSRFProvider {
	return &CSRFProvider{store: store}
}

// Token returns the stored CSRF token, generating and persisting a fresh
// one when none exists yet.
func (p *CSRFProvider) Token() (string, error) {
	token, err := p.store.Get(storage.CSRFKey)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, storage.NotFoundErr) {
		return "", errors.Wrap(err, "[CSRFProvider.Token] Get")
	}

	token = uuid.NewString()
	if err := p.store.Set(storage.CSRFKey, token); err != nil {
		return "", errors.Wrap(err, "[CSRFProvider.Token] Set")
	}
	return token, nil
}
