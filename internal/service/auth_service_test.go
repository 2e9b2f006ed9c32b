package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/participadf/ouvidoria/internal/auth"
	"github.com/participadf/ouvidoria/internal/dashboard"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
	"github.com/participadf/ouvidoria/internal/store"
)

type stubRedis struct {
	store map[string]string
	ttl   map[string]time.Duration
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if s.store == nil {
		s.store = make(map[string]string)
		s.ttl = make(map[string]time.Duration)
	}
	s.store[key] = fmt.Sprint(value)
	s.ttl[key] = expiration
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	val, ok := s.store[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := s.store[key]; ok {
			delete(s.store, key)
			removed++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(removed)
	return cmd
}

func newTestAuth(t *testing.T, rdb redisCommander) (*AuthService, *store.Store) {
	t.Helper()
	users, err := store.BuildUsers([]store.SeedUser{
		{Username: "ad", CPF: "000.000.000-00", Password: "kl", Name: "Administrador Global", Role: ouvidoria.RoleAdmin},
		{Username: "atendente", CPF: "000.000.000-02", Password: "1", Role: ouvidoria.RoleAttendant},
		{Username: "111.111.111-11", CPF: "111.111.111-11", Password: "1", Name: "Ana Souza", Role: ouvidoria.RoleCitizen},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	st := store.New(users...)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	svc := &AuthService{
		users:      st,
		registrar:  dashboard.NewService(store.NewRepository(st), st),
		redis:      rdb,
		jwt:        auth.NewJWTManager(strings.Repeat("a", 32), time.Minute),
		refreshTTL: time.Hour,
		now:        func() time.Time { return now },
	}
	return svc, st
}

func TestLoginMapsRolesToAudience(t *testing.T) {
	svc, _ := newTestAuth(t, &stubRedis{})
	cases := []struct {
		identifier string
		password   string
		audience   string
		roles      []string
	}{
		{"ad", "kl", auth.AudienceBackoffice, []string{RoleAdmin, RoleAttendant}},
		{"atendente", "1", auth.AudienceBackoffice, []string{RoleAttendant}},
		{"11111111111", "1", auth.AudienceCidadao, []string{RoleCitizen}},
		{"111.111.111-11", "1", auth.AudienceCidadao, []string{RoleCitizen}},
	}

	for _, tc := range cases {
		result, err := svc.Login(context.Background(), tc.identifier, tc.password)
		if err != nil {
			t.Fatalf("login %s: %v", tc.identifier, err)
		}
		if result.Audience != tc.audience {
			t.Fatalf("%s: expected audience %s, got %s", tc.identifier, tc.audience, result.Audience)
		}
		if fmt.Sprint(result.Roles) != fmt.Sprint(tc.roles) {
			t.Fatalf("%s: expected roles %v, got %v", tc.identifier, tc.roles, result.Roles)
		}

		claims, err := svc.JWT().ParseAndValidate(result.AccessToken)
		if err != nil {
			t.Fatalf("%s: token inválido: %v", tc.identifier, err)
		}
		if claims.Subject != result.Subject || claims.Audience[0] != tc.audience {
			t.Fatalf("%s: claims inesperadas %+v", tc.identifier, claims)
		}
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newTestAuth(t, &stubRedis{})
	_, err := svc.Login(context.Background(), "ad", "errada")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	rdb := &stubRedis{}
	svc, _ := newTestAuth(t, rdb)
	ctx := context.Background()

	first, err := svc.Login(ctx, "atendente", "1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	key := auth.RefreshKey(auth.AudienceBackoffice, auth.HashRefreshToken(first.RefreshToken))
	if rdb.store[key] != "atendente" {
		t.Fatalf("expected refresh stored for atendente, got %q", rdb.store[key])
	}
	if rdb.ttl[key] != time.Hour {
		t.Fatalf("expected ttl 1h, got %s", rdb.ttl[key])
	}

	if _, err := svc.Refresh(ctx, auth.AudienceCidadao, first.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected audience mismatch to fail, got %v", err)
	}

	second, err := svc.Refresh(ctx, auth.AudienceBackoffice, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatalf("refresh token should rotate")
	}
	if _, ok := rdb.store[key]; ok {
		t.Fatalf("old refresh token should be removed")
	}

	if _, err := svc.Refresh(ctx, auth.AudienceBackoffice, first.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected reused token to fail, got %v", err)
	}

	if err := svc.Logout(ctx, auth.AudienceBackoffice, second.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(rdb.store) != 0 {
		t.Fatalf("expected empty store after logout, got %v", rdb.store)
	}
}

func TestRefreshWithoutRedis(t *testing.T) {
	svc, _ := newTestAuth(t, nil)
	result, err := svc.Login(context.Background(), "ad", "kl")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.RefreshToken != "" {
		t.Fatalf("expected no refresh token without redis")
	}
	if svc.RefreshEnabled() {
		t.Fatalf("refresh should be disabled")
	}
	if _, err := svc.Refresh(context.Background(), auth.AudienceBackoffice, "x"); !errors.Is(err, ErrRefreshUnavailable) {
		t.Fatalf("expected ErrRefreshUnavailable, got %v", err)
	}
	if err := svc.Logout(context.Background(), auth.AudienceBackoffice, "x"); err != nil {
		t.Fatalf("logout without redis: %v", err)
	}
}

func TestRegisterAndMe(t *testing.T) {
	svc, _ := newTestAuth(t, &stubRedis{})
	ctx := context.Background()

	result, err := svc.Register(ctx, "Bruno Oliveira", "22222222222", "senha")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if result.Subject != "222.222.222-22" || result.Audience != auth.AudienceCidadao {
		t.Fatalf("unexpected result %+v", result)
	}

	if _, err := svc.Register(ctx, "Outro", "222.222.222-22", "x"); !errors.Is(err, dashboard.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	profile, roles, err := svc.MeProfile(ctx, result.Subject)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if profile.Name != "Bruno Oliveira" || profile.CPF != "222.222.222-22" || !HasAnyRole(roles, RoleCitizen) {
		t.Fatalf("unexpected profile %+v roles %v", profile, roles)
	}

	if _, _, err := svc.Me(ctx, "fantasma"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestGrant(t *testing.T) {
	if _, _, err := Grant("visitante"); !errors.Is(err, ErrNoEligibleRoles) {
		t.Fatalf("expected ErrNoEligibleRoles, got %v", err)
	}
	if HasAnyRole([]string{RoleCitizen}, RoleAdmin, RoleAttendant) {
		t.Fatalf("citizen must not reach backoffice")
	}
	if !HasAnyRole([]string{"admin"}, RoleAdmin) {
		t.Fatalf("role comparison should ignore case")
	}
}
