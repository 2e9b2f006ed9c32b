// Package store mantém usuários e manifestações em memória.
//
// Nada é persistido: o conteúdo vive enquanto a instância existir. Cada
// Store é independente, o que permite instâncias isoladas em testes.
package store

import (
	"sync"

	"github.com/participadf/ouvidoria/internal/auth"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
	"github.com/participadf/ouvidoria/internal/util"
)

// Store guarda usuários e manifestações.
type Store struct {
	mu             sync.RWMutex
	users          []ouvidoria.User
	manifestations []ouvidoria.Manifestation
	// byProtocol aponta para a primeira ocorrência de cada protocolo.
	byProtocol map[string]int
}

// New cria um store com os usuários iniciais informados.
func New(users ...ouvidoria.User) *Store {
	s := &Store{byProtocol: make(map[string]int)}
	s.users = append(s.users, users...)
	return s
}

// Users devolve cópia da lista de usuários.
func (s *Store) Users() []ouvidoria.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ouvidoria.User(nil), s.users...)
}

// AddUser acrescenta o usuário. Não verifica duplicidade.
func (s *Store) AddUser(user ouvidoria.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, user)
	return true
}

// FindUser localiza pelo usuário ou CPF, com ou sem pontuação.
func (s *Store) FindUser(identifier string) (ouvidoria.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cleanID := util.DigitsOnly(identifier)
	for _, u := range s.users {
		if matchesIdentifier(u, identifier, cleanID) {
			return u, true
		}
	}
	return ouvidoria.User{}, false
}

// Authenticate devolve o primeiro usuário com identificador e senha corretos.
func (s *Store) Authenticate(identifier, password string) (ouvidoria.User, bool) {
	s.mu.RLock()
	candidates := make([]ouvidoria.User, 0, 1)
	cleanID := util.DigitsOnly(identifier)
	for _, u := range s.users {
		if matchesIdentifier(u, identifier, cleanID) {
			candidates = append(candidates, u)
		}
	}
	s.mu.RUnlock()

	// a verificação Argon2id é cara; roda fora do lock
	for _, u := range candidates {
		if auth.Verify(password, u.PasswordHash) {
			return u, true
		}
	}
	return ouvidoria.User{}, false
}

// RemoveUser remove o primeiro usuário com o username exato.
func (s *Store) RemoveUser(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, u := range s.users {
		if u.Username == username {
			s.users = append(s.users[:i], s.users[i+1:]...)
			return true
		}
	}
	return false
}

// SaveManifestation acrescenta o registro e devolve a cópia guardada.
func (s *Store) SaveManifestation(m ouvidoria.Manifestation) ouvidoria.Manifestation {
	m.StripIdentity()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byProtocol[m.Protocol]; !exists {
		s.byProtocol[m.Protocol] = len(s.manifestations)
	}
	s.manifestations = append(s.manifestations, m)
	return m
}

// Manifestations devolve cópia da lista na ordem de chegada.
func (s *Store) Manifestations() []ouvidoria.Manifestation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ouvidoria.Manifestation(nil), s.manifestations...)
}

// ManifestationsByUser filtra pelo CPF do dono, comparando o texto exato.
func (s *Store) ManifestationsByUser(cpf string) []ouvidoria.Manifestation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ouvidoria.Manifestation
	for _, m := range s.manifestations {
		if m.OwnerCPF == cpf {
			out = append(out, m)
		}
	}
	return out
}

// FindManifestationByProtocol busca pelo protocolo exato.
func (s *Store) FindManifestationByProtocol(protocol string) (ouvidoria.Manifestation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byProtocol[protocol]
	if !ok {
		return ouvidoria.Manifestation{}, false
	}
	return s.manifestations[idx], true
}

// UpdateManifestation mescla o patch; devolve false se o protocolo não existir.
func (s *Store) UpdateManifestation(protocol string, patch ouvidoria.ManifestationPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byProtocol[protocol]
	if !ok {
		return false
	}
	updated := s.manifestations[idx]
	patch.Apply(&updated)
	s.manifestations[idx] = updated
	return true
}

func matchesIdentifier(u ouvidoria.User, identifier, cleanID string) bool {
	if u.Username == identifier {
		return true
	}
	if cleanID == "" {
		return false
	}
	return util.DigitsOnly(u.Username) == cleanID || util.DigitsOnly(u.CPF) == cleanID
}
