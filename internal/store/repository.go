package store

import (
	"context"

	"github.com/participadf/ouvidoria/internal/ouvidoria"
)

// Repository expõe o Store pela interface usada pelos serviços.
type Repository struct {
	store *Store
}

// NewRepository adapta o store em memória.
func NewRepository(s *Store) *Repository {
	return &Repository{store: s}
}

var _ ouvidoria.Repository = (*Repository)(nil)

func (r *Repository) SaveManifestation(ctx context.Context, m ouvidoria.Manifestation) (ouvidoria.Manifestation, error) {
	return r.store.SaveManifestation(m), nil
}

func (r *Repository) Manifestations(ctx context.Context) ([]ouvidoria.Manifestation, error) {
	return r.store.Manifestations(), nil
}

func (r *Repository) ManifestationsByUser(ctx context.Context, cpf string) ([]ouvidoria.Manifestation, error) {
	return r.store.ManifestationsByUser(cpf), nil
}

func (r *Repository) FindManifestationByProtocol(ctx context.Context, protocol string) (ouvidoria.Manifestation, error) {
	m, ok := r.store.FindManifestationByProtocol(protocol)
	if !ok {
		return ouvidoria.Manifestation{}, ouvidoria.ErrNotFound
	}
	return m, nil
}

func (r *Repository) UpdateManifestation(ctx context.Context, protocol string, patch ouvidoria.ManifestationPatch) (bool, error) {
	return r.store.UpdateManifestation(protocol, patch), nil
}
