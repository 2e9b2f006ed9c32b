package store

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/participadf/ouvidoria/internal/auth"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
)

// SeedUser é um usuário inicial; a senha pode vir em texto ou já como hash Argon2id.
type SeedUser struct {
	Username string         `yaml:"username"`
	CPF      string         `yaml:"cpf"`
	Password string         `yaml:"password"`
	Name     string         `yaml:"name"`
	Role     ouvidoria.Role `yaml:"role"`
}

type seedFile struct {
	Users []SeedUser `yaml:"users"`
}

// DemoSeed são as contas de demonstração do portal.
var DemoSeed = []SeedUser{
	{Username: "ad", CPF: "000.000.000-00", Password: "kl", Name: "Administrador Global", Role: ouvidoria.RoleAdmin},
	{Username: "atendente", CPF: "000.000.000-02", Password: "1", Name: "Atendente de Teste", Role: ouvidoria.RoleAttendant},
	{Username: "111.111.111-11", CPF: "111.111.111-11", Password: "1", Name: "Ana Souza", Role: ouvidoria.RoleCitizen},
	{Username: "222.222.222-22", CPF: "222.222.222-22", Password: "1", Name: "Bruno Oliveira", Role: ouvidoria.RoleCitizen},
	{Username: "333.333.333-33", CPF: "333.333.333-33", Password: "1", Name: "Carla Dias", Role: ouvidoria.RoleCitizen},
	{Username: "444.444.444-44", CPF: "444.444.444-44", Password: "1", Name: "Daniel Lima", Role: ouvidoria.RoleCitizen},
	{Username: "555.555.555-55", CPF: "555.555.555-55", Password: "1", Name: "Elena Martins", Role: ouvidoria.RoleCitizen},
	{Username: "666.666.666-66", CPF: "666.666.666-66", Password: "1", Name: "Fábio Rocha", Role: ouvidoria.RoleCitizen},
	{Username: "777.777.777-77", CPF: "777.777.777-77", Password: "1", Name: "Gabriel Santos", Role: ouvidoria.RoleCitizen},
}

// LoadSeedFile lê usuários iniciais de um arquivo YAML com a chave "users".
func LoadSeedFile(path string) ([]SeedUser, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	return file.Users, nil
}

// BuildUsers converte o seed, gerando hash das senhas em texto.
func BuildUsers(seed []SeedUser) ([]ouvidoria.User, error) {
	users := make([]ouvidoria.User, 0, len(seed))
	for _, s := range seed {
		username := strings.TrimSpace(s.Username)
		if username == "" {
			return nil, fmt.Errorf("seed: usuário sem username")
		}

		role := s.Role
		switch role {
		case ouvidoria.RoleAdmin, ouvidoria.RoleAttendant, ouvidoria.RoleCitizen:
		case "":
			role = ouvidoria.RoleCitizen
		default:
			return nil, fmt.Errorf("seed: papel %q inválido para %s", s.Role, username)
		}

		hash := s.Password
		if !auth.IsHash(hash) {
			var err error
			if hash, err = auth.Hash(s.Password); err != nil {
				return nil, fmt.Errorf("seed: hash de %s: %w", username, err)
			}
		}

		users = append(users, ouvidoria.User{
			Username:     username,
			CPF:          strings.TrimSpace(s.CPF),
			PasswordHash: hash,
			Name:         strings.TrimSpace(s.Name),
			Role:         role,
		})
	}
	return users, nil
}
