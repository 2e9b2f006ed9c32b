package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/participadf/ouvidoria/internal/auth"
)

type contextKey string

const (
	ContextKeySubject  contextKey = "subject"
	ContextKeyAudience contextKey = "audience"
	ContextKeyRoles    contextKey = "roles"
	ContextKeyName     contextKey = "name"
)

// Auth valida JWT de acesso e injeta claims no contexto.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}

			claims, err := jwtManager.ParseAndValidate(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "token inválido")
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth injeta as claims quando há token válido e segue sem elas caso contrário.
// Usado no envio de manifestação, que aceita cidadão logado ou visitante.
func OptionalAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if claims, err := jwtManager.ParseAndValidate(token); err == nil {
					r = r.WithContext(withClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func withClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, ContextKeySubject, claims.Subject)
	ctx = context.WithValue(ctx, ContextKeyAudience, claims.Audience[0])
	ctx = context.WithValue(ctx, ContextKeyRoles, claims.Roles)
	return context.WithValue(ctx, ContextKeyName, claims.Name)
}

// GetSubject recupera subject do contexto.
func GetSubject(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySubject).(string)
	return val
}

// GetAudience recupera audience do contexto.
func GetAudience(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyAudience).(string)
	return val
}

// GetRoles recupera roles do contexto.
func GetRoles(ctx context.Context) []string {
	val, _ := ctx.Value(ContextKeyRoles).([]string)
	return val
}

// GetName recupera o nome de exibição do contexto.
func GetName(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyName).(string)
	return val
}

// RequireRoles garante que o usuário possua pelo menos um dos papéis informados.
func RequireRoles(requiredRoles ...string) func(http.Handler) http.Handler {
	normalized := make([]string, 0, len(requiredRoles))
	for _, role := range requiredRoles {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role != "" {
			normalized = append(normalized, role)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, role := range GetRoles(r.Context()) {
				roleUpper := strings.ToUpper(strings.TrimSpace(role))
				for _, required := range normalized {
					if roleUpper == required {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			writeError(w, http.StatusForbidden, "FORBIDDEN", "acesso negado")
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
