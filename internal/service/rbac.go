package service

import (
	"errors"
	"strings"

	"github.com/participadf/ouvidoria/internal/auth"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
)

// Papéis gravados no token de acesso.
const (
	RoleCitizen   = "CITIZEN"
	RoleAttendant = "ATTENDANT"
	RoleAdmin     = "ADMIN"
)

var (
	// ErrForbidden indica ausência de permissão.
	ErrForbidden = errors.New("acesso negado")
)

// Grant traduz o papel do usuário em audiência e papéis do token.
func Grant(role ouvidoria.Role) (audience string, roles []string, err error) {
	switch role {
	case ouvidoria.RoleCitizen:
		return auth.AudienceCidadao, []string{RoleCitizen}, nil
	case ouvidoria.RoleAttendant:
		return auth.AudienceBackoffice, []string{RoleAttendant}, nil
	case ouvidoria.RoleAdmin:
		// admin também atende manifestações
		return auth.AudienceBackoffice, []string{RoleAdmin, RoleAttendant}, nil
	}
	return "", nil, ErrNoEligibleRoles
}

// HasAnyRole informa se algum dos papéis está entre os permitidos.
func HasAnyRole(roles []string, allowed ...string) bool {
	for _, want := range allowed {
		if hasRole(roles, want) {
			return true
		}
	}
	return false
}

func normalizeRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	normalized := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}

func hasRole(roles []string, role string) bool {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, existing := range roles {
		if strings.ToUpper(existing) == role {
			return true
		}
	}
	return false
}
