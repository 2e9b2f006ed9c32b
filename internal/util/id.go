package util

import "github.com/google/uuid"

// NewID gera identificador aleatório para sessões e chaves temporárias.
func NewID() string {
	return uuid.NewString()
}
