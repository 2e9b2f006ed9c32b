package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

// UploadInput representa o anexo a ser guardado.
type UploadInput struct {
	Key          string
	Body         []byte
	ContentType  string
	CacheControl string
}

// UploadResult descreve onde o anexo ficou.
type UploadResult struct {
	URL  string
	ETag string
}

// Uploader define o comportamento mínimo de um backend de anexos.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
}

// ErrNotConfigured indica ausência de backend de anexos.
var ErrNotConfigured = errors.New("storage: uploader não configurado")

// CleanKey normaliza a chave e impede que ela escape do prefixo.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	cleaned := strings.TrimLeft(path.Clean("/"+key), "/")
	if cleaned == "" || cleaned == "." {
		return "", errors.New("storage: chave do objeto obrigatória")
	}
	return cleaned, nil
}

func contentTypeOrDefault(ct string) string {
	if ct = strings.TrimSpace(ct); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
