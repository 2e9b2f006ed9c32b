package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/participadf/ouvidoria/internal/auth"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
)

var (
	// ErrInvalidCredentials indica falha na autenticação.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrRefreshInvalid indica refresh token inválido ou expirado.
	ErrRefreshInvalid = errors.New("refresh token inválido")
	// ErrRefreshUnavailable indica servidor sem Redis para guardar sessões.
	ErrRefreshUnavailable = errors.New("renovação de sessão indisponível")
	// ErrNoEligibleRoles indica ausência de papéis autorizados.
	ErrNoEligibleRoles = errors.New("usuário sem papel elegível")
	// ErrUnknownUser indica token de um usuário que não existe mais.
	ErrUnknownUser = errors.New("usuário não encontrado")
)

// UserStore é o que a autenticação precisa do cadastro de usuários.
type UserStore interface {
	Authenticate(identifier, password string) (ouvidoria.User, bool)
	FindUser(identifier string) (ouvidoria.User, bool)
}

// CitizenRegistrar cadastra cidadãos.
type CitizenRegistrar interface {
	CreateCitizen(name, cpf, password string) (ouvidoria.User, error)
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthService concentra regras de autenticação e sessões.
type AuthService struct {
	users      UserStore
	registrar  CitizenRegistrar
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
	now        func() time.Time
}

// NewAuthService cria novo serviço. redisClient nil desativa o refresh token.
func NewAuthService(users UserStore, registrar CitizenRegistrar, redisClient *redis.Client, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *AuthService {
	s := &AuthService{users: users, registrar: registrar, jwt: jwtMgr, refreshTTL: refreshTTL, now: time.Now}
	if redisClient != nil {
		s.redis = redisClient
	}
	return s
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// RefreshEnabled informa se há Redis para guardar refresh tokens.
func (s *AuthService) RefreshEnabled() bool {
	return s.redis != nil
}

// LoginResult representa retorno padrão de autenticações.
type LoginResult struct {
	Audience      string
	AccessToken   string
	AccessExpiry  time.Time
	RefreshToken  string
	RefreshExpiry time.Time
	Subject       string
	Roles         []string
	Profile       Profile
}

// Profile é a visão do usuário devolvida ao front-end.
type Profile struct {
	Username string `json:"username"`
	CPF      string `json:"cpf"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

func newProfile(u ouvidoria.User) Profile {
	return Profile{Username: u.Username, CPF: u.CPF, Name: u.DisplayName(), Role: string(u.Role)}
}

// Login autentica por usuário ou CPF.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	user, ok := s.users.Authenticate(identifier, password)
	if !ok {
		log.Warn().Msg("login: credenciais inválidas")
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, user)
}

// Register cadastra o cidadão e já inicia a sessão.
func (s *AuthService) Register(ctx context.Context, name, cpf, password string) (*LoginResult, error) {
	user, err := s.registrar.CreateCitizen(name, cpf, password)
	if err != nil {
		return nil, err
	}
	log.Info().Str("usuario", user.Username).Msg("cidadão cadastrado")
	return s.issue(ctx, user)
}

// Refresh troca refresh token por novos tokens.
func (s *AuthService) Refresh(ctx context.Context, audience, rawToken string) (*LoginResult, error) {
	if s.redis == nil {
		return nil, ErrRefreshUnavailable
	}
	if rawToken == "" {
		return nil, ErrRefreshInvalid
	}

	redisKey := auth.RefreshKey(audience, auth.HashRefreshToken(rawToken))
	username, err := s.redis.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		return nil, err
	}

	user, ok := s.users.FindUser(username)
	if !ok || user.Username != username {
		return nil, ErrRefreshInvalid
	}
	if aud, _, err := Grant(user.Role); err != nil || aud != audience {
		return nil, ErrRefreshInvalid
	}

	result, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	// token anterior deixa de valer
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return result, nil
}

// Logout revoga refresh token atual.
func (s *AuthService) Logout(ctx context.Context, audience, rawToken string) error {
	if rawToken == "" || s.redis == nil {
		return nil
	}
	redisKey := auth.RefreshKey(audience, auth.HashRefreshToken(rawToken))
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// Me devolve o usuário dono do token.
func (s *AuthService) Me(ctx context.Context, subject string) (ouvidoria.User, []string, error) {
	user, ok := s.users.FindUser(subject)
	if !ok || user.Username != subject {
		return ouvidoria.User{}, nil, ErrUnknownUser
	}
	_, roles, err := Grant(user.Role)
	if err != nil {
		return ouvidoria.User{}, nil, err
	}
	return user, roles, nil
}

// MeProfile é Me no formato do front-end.
func (s *AuthService) MeProfile(ctx context.Context, subject string) (Profile, []string, error) {
	user, roles, err := s.Me(ctx, subject)
	if err != nil {
		return Profile{}, nil, err
	}
	return newProfile(user), roles, nil
}

func (s *AuthService) issue(ctx context.Context, user ouvidoria.User) (*LoginResult, error) {
	audience, roles, err := Grant(user.Role)
	if err != nil {
		return nil, err
	}
	roles = normalizeRoles(roles)

	token, err := s.jwt.Issue(user.Username, audience, user.DisplayName(), roles)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{
		Audience:     audience,
		AccessToken:  token.Token,
		AccessExpiry: token.ExpiresAt,
		Subject:      user.Username,
		Roles:        roles,
		Profile:      newProfile(user),
	}

	if s.redis == nil {
		return result, nil
	}

	rawRefresh, refreshHash, err := auth.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(s.refreshTTL)
	if err := s.persistRefresh(ctx, user.Username, audience, refreshHash, expires); err != nil {
		return nil, err
	}
	result.RefreshToken = rawRefresh
	result.RefreshExpiry = expires
	return result, nil
}

// persistRefresh guarda o username sob o hash do token até expirar.
func (s *AuthService) persistRefresh(ctx context.Context, username, audience, hash string, expires time.Time) error {
	return s.redis.Set(ctx, auth.RefreshKey(audience, hash), username, expires.Sub(s.now())).Err()
}
