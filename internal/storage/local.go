package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader grava anexos em disco; o diretório é servido em PublicPrefix.
type LocalUploader struct {
	dir          string
	publicPrefix string
}

// NewLocalUploader garante que o diretório exista.
func NewLocalUploader(dir, publicPrefix string) (*LocalUploader, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage: diretório de uploads ausente")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: criar %s: %w", dir, err)
	}
	if publicPrefix == "" {
		publicPrefix = "/uploads"
	}
	return &LocalUploader{dir: dir, publicPrefix: strings.TrimRight(publicPrefix, "/")}, nil
}

// Dir devolve o diretório raiz dos anexos.
func (u *LocalUploader) Dir() string {
	return u.dir
}

// Upload grava o arquivo de forma atômica (arquivo temporário + rename).
func (u *LocalUploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	key, err := CleanKey(input.Key)
	if err != nil {
		return nil, err
	}
	if len(input.Body) == 0 {
		return nil, errors.New("storage: corpo vazio")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := filepath.Join(u.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, input.Body, 0o644); err != nil {
		return nil, fmt.Errorf("storage: gravar: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("storage: gravar: %w", err)
	}

	sum := sha256.Sum256(input.Body)
	escaped := (&url.URL{Path: key}).EscapedPath()
	return &UploadResult{
		URL:  u.publicPrefix + "/" + escaped,
		ETag: hex.EncodeToString(sum[:8]),
	}, nil
}
