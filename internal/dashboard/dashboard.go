// Package dashboard reúne as operações do painel administrativo.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/participadf/ouvidoria/internal/auth"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
	"github.com/participadf/ouvidoria/internal/util"
)

// AttendantCPF é o CPF provisório dado a atendentes criados pelo painel.
const AttendantCPF = "000.000.000-01"

var (
	// ErrUserExists indica username ou CPF já cadastrado.
	ErrUserExists = errors.New("usuário já cadastrado")
	// ErrUserNotFound indica usuário inexistente.
	ErrUserNotFound = errors.New("usuário não encontrado")
	// ErrEmptyResponse indica resposta sem texto.
	ErrEmptyResponse = errors.New("resposta vazia")
	// ErrInvalidUser indica dados de cadastro incompletos.
	ErrInvalidUser = errors.New("dados de usuário inválidos")
	// ErrSelfRemoval impede que o usuário logado remova a própria conta.
	ErrSelfRemoval = errors.New("não é possível remover o próprio usuário")
)

// UserStore é o subconjunto do store de usuários usado pelo painel.
type UserStore interface {
	Users() []ouvidoria.User
	AddUser(u ouvidoria.User) bool
	FindUser(identifier string) (ouvidoria.User, bool)
	RemoveUser(username string) bool
}

// Service implementa o painel.
type Service struct {
	repo  ouvidoria.Repository
	users UserStore
	now   func() time.Time
}

// NewService cria o serviço do painel.
func NewService(repo ouvidoria.Repository, users UserStore) *Service {
	return &Service{repo: repo, users: users, now: time.Now}
}

// Summary traz os contadores do topo do painel.
type Summary struct {
	Total    int                      `json:"total"`
	ByStatus map[ouvidoria.Status]int `json:"byStatus"`
}

// Summary conta as manifestações por status.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	items, err := s.repo.Manifestations(ctx)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{Total: len(items), ByStatus: make(map[ouvidoria.Status]int, len(ouvidoria.Statuses))}
	for _, st := range ouvidoria.Statuses {
		out.ByStatus[st] = 0
	}
	for _, m := range items {
		out.ByStatus[m.Status]++
	}
	return out, nil
}

// Filter seleciona manifestações na listagem.
type Filter struct {
	Search string
	Status ouvidoria.Status
	Tipo   ouvidoria.Tipo
	Local  string
}

// Apply filtra preservando a ordem de chegada.
func Apply(items []ouvidoria.Manifestation, f Filter) []ouvidoria.Manifestation {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]ouvidoria.Manifestation, 0, len(items))
	for _, m := range items {
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.Tipo != "" && m.Type != f.Tipo {
			continue
		}
		if f.Local != "" && m.Local != f.Local {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(m.Protocol), search) &&
			!strings.Contains(strings.ToLower(m.Subject), search) &&
			!strings.Contains(strings.ToLower(m.OwnerCPF), search) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// List devolve as manifestações filtradas.
func (s *Service) List(ctx context.Context, f Filter) ([]ouvidoria.Manifestation, error) {
	items, err := s.repo.Manifestations(ctx)
	if err != nil {
		return nil, err
	}
	return Apply(items, f), nil
}

// Get busca uma manifestação pelo protocolo.
func (s *Service) Get(ctx context.Context, protocol string) (ouvidoria.Manifestation, error) {
	return s.repo.FindManifestationByProtocol(ctx, protocol)
}

// SetStatus muda o status; qualquer transição entre status válidos é aceita.
func (s *Service) SetStatus(ctx context.Context, protocol, status string) (ouvidoria.Manifestation, error) {
	st, err := ouvidoria.ParseStatus(status)
	if err != nil {
		return ouvidoria.Manifestation{}, err
	}
	return s.update(ctx, protocol, ouvidoria.ManifestationPatch{Status: &st})
}

// Respond registra a resposta oficial e conclui a manifestação.
func (s *Service) Respond(ctx context.Context, protocol, text string, responder ouvidoria.User) (ouvidoria.Manifestation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ouvidoria.Manifestation{}, ErrEmptyResponse
	}
	now := s.now()
	name := responder.DisplayName()
	status := ouvidoria.StatusConcluido

	m, err := s.update(ctx, protocol, ouvidoria.ManifestationPatch{
		Status:        &status,
		Response:      &text,
		ResponseTime:  &now,
		ResponderName: &name,
	})
	if err != nil {
		return ouvidoria.Manifestation{}, err
	}
	log.Info().Str("protocolo", protocol).Str("responsavel", responder.Username).Msg("manifestação respondida")
	return m, nil
}

func (s *Service) update(ctx context.Context, protocol string, patch ouvidoria.ManifestationPatch) (ouvidoria.Manifestation, error) {
	ok, err := s.repo.UpdateManifestation(ctx, protocol, patch)
	if err != nil {
		return ouvidoria.Manifestation{}, err
	}
	if !ok {
		return ouvidoria.Manifestation{}, ouvidoria.ErrNotFound
	}
	return s.repo.FindManifestationByProtocol(ctx, protocol)
}

// Attendants lista atendentes.
func (s *Service) Attendants() []ouvidoria.User {
	return s.byRole(ouvidoria.RoleAttendant)
}

// Citizens lista cidadãos.
func (s *Service) Citizens() []ouvidoria.User {
	return s.byRole(ouvidoria.RoleCitizen)
}

func (s *Service) byRole(role ouvidoria.Role) []ouvidoria.User {
	var out []ouvidoria.User
	for _, u := range s.users.Users() {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out
}

// CreateAttendant cadastra um atendente com CPF provisório.
func (s *Service) CreateAttendant(name, username, password string) (ouvidoria.User, error) {
	name = strings.TrimSpace(name)
	username = strings.TrimSpace(username)
	if err := firstErr(
		util.RequireString(name, "nome"),
		util.RequireString(username, "usuário"),
		util.RequireString(password, "senha"),
	); err != nil {
		return ouvidoria.User{}, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	if _, exists := s.users.FindUser(username); exists {
		return ouvidoria.User{}, ErrUserExists
	}
	return s.addUser(ouvidoria.User{Username: username, CPF: AttendantCPF, Name: name, Role: ouvidoria.RoleAttendant}, password)
}

// CreateCitizen cadastra um cidadão; o CPF também é o usuário de login.
func (s *Service) CreateCitizen(name, cpf, password string) (ouvidoria.User, error) {
	name = strings.TrimSpace(name)
	if err := firstErr(
		util.RequireString(name, "nome"),
		util.ValidateCPF(cpf),
		util.RequireString(password, "senha"),
	); err != nil {
		return ouvidoria.User{}, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	formatted := util.FormatCPF(cpf)
	if _, exists := s.users.FindUser(formatted); exists {
		return ouvidoria.User{}, ErrUserExists
	}
	return s.addUser(ouvidoria.User{Username: formatted, CPF: formatted, Name: name, Role: ouvidoria.RoleCitizen}, password)
}

// RemoveUser exclui o usuário pelo username exato.
func (s *Service) RemoveUser(actor, username string) error {
	if actor == username {
		return ErrSelfRemoval
	}
	if !s.users.RemoveUser(username) {
		return ErrUserNotFound
	}
	log.Info().Str("usuario", username).Str("por", actor).Msg("usuário removido")
	return nil
}

func (s *Service) addUser(u ouvidoria.User, password string) (ouvidoria.User, error) {
	hash, err := auth.Hash(password)
	if err != nil {
		return ouvidoria.User{}, fmt.Errorf("hash de senha: %w", err)
	}
	u.PasswordHash = hash
	s.users.AddUser(u)
	return u, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
