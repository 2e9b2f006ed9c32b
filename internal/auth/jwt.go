package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Audiências emitidas pelo portal.
const (
	AudienceCidadao    = "cidadao"
	AudienceBackoffice = "backoffice"
)

// Claims representa o conteúdo do token de acesso.
type Claims struct {
	Roles []string `json:"roles"`
	Name  string   `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager emite e valida tokens HS256.
type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewJWTManager cria o gerenciador com segredo e TTL configurados.
func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), accessTTL: accessTTL, now: time.Now}
}

// AccessToken é o token assinado com seus metadados.
type AccessToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// Issue assina um token de acesso para o usuário.
func (m *JWTManager) Issue(subject, audience, name string, roles []string) (AccessToken, error) {
	now := m.now().UTC()
	expires := now.Add(m.accessTTL)
	jti := uuid.NewString()

	claims := Claims{
		Roles: roles,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, ID: jti, ExpiresAt: expires}, nil
}

// ParseAndValidate verifica assinatura, algoritmo e expiração.
func (m *JWTManager) ParseAndValidate(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("token inválido")
	}
	if len(claims.Audience) == 0 {
		return nil, errors.New("audience ausente")
	}
	return claims, nil
}
