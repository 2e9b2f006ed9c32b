package auth

import (
	"strings"

	"github.com/alexedwards/argon2id"
)

// hashParams ficam embutidos no próprio hash, então podem mudar sem invalidar senhas antigas.
var hashParams = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

const hashPrefix = "$argon2id$"

// Hash gera o hash Argon2id da senha.
func Hash(password string) (string, error) {
	return argon2id.CreateHash(password, hashParams)
}

// Verify compara a senha com o hash. Hashes malformados contam como senha incorreta.
func Verify(password, encodedHash string) bool {
	if !IsHash(encodedHash) {
		return false
	}
	ok, err := argon2id.ComparePasswordAndHash(password, encodedHash)
	return err == nil && ok
}

// IsHash indica se o valor já está no formato Argon2id.
func IsHash(value string) bool {
	return strings.HasPrefix(value, hashPrefix)
}
