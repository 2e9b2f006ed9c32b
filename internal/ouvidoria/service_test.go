package ouvidoria

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/participadf/ouvidoria/internal/settings"
	"github.com/participadf/ouvidoria/internal/storage"
)

type memRepo struct {
	mu    sync.Mutex
	items []Manifestation
}

func (r *memRepo) SaveManifestation(ctx context.Context, m Manifestation) (Manifestation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.StripIdentity()
	r.items = append(r.items, m)
	return m, nil
}

func (r *memRepo) Manifestations(ctx context.Context) ([]Manifestation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Manifestation(nil), r.items...), nil
}

func (r *memRepo) ManifestationsByUser(ctx context.Context, cpf string) ([]Manifestation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Manifestation
	for _, m := range r.items {
		if m.OwnerCPF == cpf {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memRepo) FindManifestationByProtocol(ctx context.Context, protocol string) (Manifestation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.items {
		if m.Protocol == protocol {
			return m, nil
		}
	}
	return Manifestation{}, ErrNotFound
}

func (r *memRepo) UpdateManifestation(ctx context.Context, protocol string, patch ManifestationPatch) (bool, error) {
	return false, nil
}

type recordingUploader struct {
	inputs []storage.UploadInput
}

func (u *recordingUploader) Upload(ctx context.Context, in storage.UploadInput) (*storage.UploadResult, error) {
	u.inputs = append(u.inputs, in)
	return &storage.UploadResult{URL: "/uploads/" + in.Key}, nil
}

type failingAnalyzer struct{}

func (failingAnalyzer) Analyze(ctx context.Context, text string) (*Analysis, error) {
	return nil, errors.New("fora do ar")
}

var fixedNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, repo Repository, up storage.Uploader, st *settings.Store) *Service {
	t.Helper()
	svc := NewService(repo, up, KeywordAnalyzer{}, st)
	svc.now = func() time.Time { return fixedNow }
	svc.protocols = NewProtocolGenerator(bytes.NewReader(bytes.Repeat([]byte{0}, 6)))
	return svc
}

func TestSubmitIdentified(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(t, repo, nil, settings.NewStore(settings.Defaults()))

	got, err := svc.Submit(context.Background(), SubmitInput{
		Tipo:           "reclamacao",
		Assunto:        "Iluminação <b>pública</b>",
		Conteudo:       "Poste apagado há uma semana, muita demora",
		Nome:           "Ana Souza",
		Email:          "ana@example.com",
		CPF:            "11111111111",
		Local:          "Ceilândia",
		DataOcorrencia: "2026-03-01",
	})
	require.NoError(t, err)

	assert.Equal(t, "OUV-2026-AAAAAA", got.Protocol)
	assert.Equal(t, TipoReclamacao, got.Type)
	assert.Equal(t, "Iluminação pública", got.Subject)
	assert.Equal(t, "111.111.111-11", got.OwnerCPF)
	assert.Equal(t, StatusEmAnalise, got.Status)
	assert.Equal(t, fixedNow, got.Date)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, "negativo", got.Analysis.Sentiment)

	mine, err := svc.ByOwner(context.Background(), "111.111.111-11")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestSubmitAnonymousStripsIdentity(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(t, repo, nil, settings.NewStore(settings.Defaults()))

	got, err := svc.Submit(context.Background(), SubmitInput{
		Tipo:     "Denúncia",
		Conteudo: "Descarte irregular de lixo",
		Anonimo:  true,
		Nome:     "Não deveria aparecer",
		Email:    "x@example.com",
		CPF:      "111.111.111-11",
	})
	require.NoError(t, err)
	assert.True(t, got.IsAnonymous)
	assert.Empty(t, got.OwnerCPF)
	assert.Empty(t, got.Name)
	assert.Empty(t, got.Email)
	assert.Equal(t, "Geral", got.Subject)
}

func TestSubmitRespectsSettings(t *testing.T) {
	st := settings.NewStore(settings.Defaults())
	svc := newTestService(t, &memRepo{}, nil, st)
	in := SubmitInput{Tipo: "Elogio", Conteudo: "Ótimo atendimento", Anonimo: true}

	off := false
	st.Update(settings.Update{AllowAnonymous: &off})
	_, err := svc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, ErrAnonymousDisabled)

	on := true
	st.Update(settings.Update{MaintenanceMode: &on})
	in.Anonimo = false
	_, err = svc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, ErrMaintenance)
}

func TestSubmitValidation(t *testing.T) {
	svc := newTestService(t, &memRepo{}, nil, settings.NewStore(settings.Defaults()))

	_, err := svc.Submit(context.Background(), SubmitInput{
		Tipo:           "Outro",
		Email:          "sem-arroba",
		CPF:            "123",
		DataOcorrencia: "01/02/2026",
	})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	for _, field := range []string{"tipo_manifestacao", "conteudo_texto", "email", "cpf", "data_ocorrencia"} {
		assert.Contains(t, vErr.Fields, field)
	}
}

func TestSubmitStoresAttachment(t *testing.T) {
	up := &recordingUploader{}
	svc := newTestService(t, &memRepo{}, up, settings.NewStore(settings.Defaults()))

	got, err := svc.Submit(context.Background(), SubmitInput{
		Tipo:    "Solicitação",
		Arquivo: &File{Name: "../gravacao_audio.webm", ContentType: "audio/webm", Data: []byte("ogg")},
	})
	require.NoError(t, err)

	require.Len(t, up.inputs, 1)
	assert.Equal(t, "manifestacoes/OUV-2026-AAAAAA_gravacao_audio.webm", up.inputs[0].Key)
	require.NotNil(t, got.Attachment)
	assert.Equal(t, "audio", got.MediaKind)
	assert.Equal(t, "/uploads/manifestacoes/OUV-2026-AAAAAA_gravacao_audio.webm", got.Attachment.URL)
}

func TestSubmitAttachmentWithoutBackend(t *testing.T) {
	svc := newTestService(t, &memRepo{}, storage.NoopUploader{}, settings.NewStore(settings.Defaults()))

	_, err := svc.Submit(context.Background(), SubmitInput{
		Tipo:    "Solicitação",
		Arquivo: &File{Name: "a.pdf", Data: []byte("%PDF")},
	})
	assert.ErrorIs(t, err, storage.ErrNotConfigured)
}

func TestSubmitRegeneratesCollidingProtocol(t *testing.T) {
	repo := &memRepo{items: []Manifestation{{Protocol: "OUV-2026-AAAAAA"}}}
	svc := newTestService(t, repo, nil, settings.NewStore(settings.Defaults()))
	svc.protocols = NewProtocolGenerator(bytes.NewReader(append(bytes.Repeat([]byte{0}, 6), bytes.Repeat([]byte{1}, 6)...)))

	got, err := svc.Submit(context.Background(), SubmitInput{Tipo: "Sugestão", Conteudo: "Mais ciclovias"})
	require.NoError(t, err)
	assert.Equal(t, "OUV-2026-BBBBBB", got.Protocol)
}

func TestSubmitToleratesAnalyzerFailure(t *testing.T) {
	svc := NewService(&memRepo{}, nil, failingAnalyzer{}, settings.NewStore(settings.Defaults()))

	got, err := svc.Submit(context.Background(), SubmitInput{Tipo: "Elogio", Conteudo: "Parabéns"})
	require.NoError(t, err)
	assert.Nil(t, got.Analysis)
	assert.Regexp(t, `^OUV-\d{4}-[A-Z0-9]{6}$`, got.Protocol)
}

func TestLookup(t *testing.T) {
	repo := &memRepo{items: []Manifestation{{Protocol: "OUV-2026-XYZ123", Status: StatusEmAndamento}}}
	svc := newTestService(t, repo, nil, settings.NewStore(settings.Defaults()))

	got, err := svc.Lookup(context.Background(), " ouv-2026-xyz123 ")
	require.NoError(t, err)
	assert.Equal(t, StatusEmAndamento, got.Status)

	_, err = svc.Lookup(context.Background(), "OUV-2026-000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMediaKind(t *testing.T) {
	cases := map[string]string{
		"audio/webm":      "audio",
		"video/mp4":       "video",
		"image/png":       "image",
		"application/pdf": "file",
		"":                "file",
	}
	for ct, want := range cases {
		assert.Equal(t, want, MediaKind(ct), ct)
	}
}
