package storage

import "context"

// NoopUploader recusa anexos quando nenhum backend foi configurado.
type NoopUploader struct{}

// Upload sempre devolve ErrNotConfigured.
func (NoopUploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	return nil, ErrNotConfigured
}
