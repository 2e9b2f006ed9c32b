package ouvidoria

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/participadf/ouvidoria/internal/settings"
	"github.com/participadf/ouvidoria/internal/storage"
	"github.com/participadf/ouvidoria/internal/util"
)

const (
	defaultSubject       = "Geral"
	maxProtocolAttempts  = 5
	attachmentKeyPrefix  = "manifestacoes/"
	attachmentCacheRules = "private, max-age=3600"
)

// ErrProtocolExhausted indica que não foi possível gerar protocolo livre.
var ErrProtocolExhausted = errors.New("não foi possível gerar protocolo único")

// ValidationError agrupa mensagens por campo do formulário.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "dados inválidos (" + strings.Join(parts, "; ") + ")"
}

// File é um anexo recebido no envio.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// SubmitInput traz os campos do formulário de nova manifestação.
type SubmitInput struct {
	Tipo           string
	Assunto        string
	Conteudo       string
	Anonimo        bool
	Nome           string
	Email          string
	Telefone       string
	CPF            string
	Local          string
	DataOcorrencia string
	Arquivo        *File
}

// SettingsReader lê a configuração corrente do portal.
type SettingsReader interface {
	Get() settings.AppSettings
}

// Service implementa o recebimento e a consulta de manifestações.
type Service struct {
	repo      Repository
	uploader  storage.Uploader
	analyzer  Analyzer
	settings  SettingsReader
	protocols *ProtocolGenerator
	now       func() time.Time
}

// NewService monta o serviço. analyzer pode ser nil (sem triagem automática).
func NewService(repo Repository, uploader storage.Uploader, analyzer Analyzer, cfg SettingsReader) *Service {
	if uploader == nil {
		uploader = storage.NoopUploader{}
	}
	return &Service{
		repo:      repo,
		uploader:  uploader,
		analyzer:  analyzer,
		settings:  cfg,
		protocols: NewProtocolGenerator(nil),
		now:       time.Now,
	}
}

// Submit valida, gera protocolo, guarda o anexo e registra a manifestação.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Manifestation, error) {
	current := s.settings.Get()
	if current.MaintenanceMode {
		return Manifestation{}, ErrMaintenance
	}
	if in.Anonimo && !current.AllowAnonymous {
		return Manifestation{}, ErrAnonymousDisabled
	}

	tipo, err := validateSubmit(in)
	if err != nil {
		return Manifestation{}, err
	}

	now := s.now()
	protocol, err := s.freeProtocol(ctx, now)
	if err != nil {
		return Manifestation{}, err
	}

	subject := util.SanitizeText(in.Assunto)
	if subject == "" {
		subject = defaultSubject
	}

	m := Manifestation{
		Protocol:       protocol,
		Type:           tipo,
		Subject:        subject,
		Content:        util.SanitizeText(in.Conteudo),
		Date:           now,
		Status:         StatusEmAnalise,
		Local:          util.SanitizeText(in.Local),
		OccurrenceDate: strings.TrimSpace(in.DataOcorrencia),
		IsAnonymous:    in.Anonimo,
	}
	if !in.Anonimo {
		m.Name = util.SanitizeText(in.Nome)
		m.Email = strings.TrimSpace(in.Email)
		m.Phone = strings.TrimSpace(in.Telefone)
		if cpf := strings.TrimSpace(in.CPF); cpf != "" {
			m.OwnerCPF = util.FormatCPF(cpf)
		}
	}

	if in.Arquivo != nil && len(in.Arquivo.Data) > 0 {
		att, err := s.storeAttachment(ctx, protocol, in.Arquivo)
		if err != nil {
			return Manifestation{}, err
		}
		m.Attachment = att
		m.MediaKind = MediaKind(att.Type)
	}

	if s.analyzer != nil {
		analysis, err := s.analyzer.Analyze(ctx, m.Content)
		if err != nil {
			log.Warn().Err(err).Str("protocolo", protocol).Msg("análise IZA indisponível")
		} else {
			m.Analysis = analysis
		}
	}

	saved, err := s.repo.SaveManifestation(ctx, m)
	if err != nil {
		return Manifestation{}, fmt.Errorf("salvar manifestação: %w", err)
	}

	log.Info().
		Str("protocolo", saved.Protocol).
		Str("tipo", string(saved.Type)).
		Bool("anonimo", saved.IsAnonymous).
		Msg("manifestação registrada")
	return saved, nil
}

// Lookup busca a manifestação pelo protocolo.
func (s *Service) Lookup(ctx context.Context, protocol string) (Manifestation, error) {
	protocol = strings.ToUpper(strings.TrimSpace(protocol))
	if protocol == "" {
		return Manifestation{}, ErrNotFound
	}
	return s.repo.FindManifestationByProtocol(ctx, protocol)
}

// ByOwner devolve o histórico do cidadão; o CPF é normalizado antes da busca.
func (s *Service) ByOwner(ctx context.Context, cpf string) ([]Manifestation, error) {
	if strings.TrimSpace(cpf) == "" {
		return nil, nil
	}
	return s.repo.ManifestationsByUser(ctx, util.FormatCPF(cpf))
}

func (s *Service) freeProtocol(ctx context.Context, now time.Time) (string, error) {
	for i := 0; i < maxProtocolAttempts; i++ {
		candidate, err := s.protocols.Next(now)
		if err != nil {
			return "", err
		}
		_, err = s.repo.FindManifestationByProtocol(ctx, candidate)
		if errors.Is(err, ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("verificar protocolo: %w", err)
		}
		log.Debug().Str("protocolo", candidate).Msg("protocolo repetido, gerando outro")
	}
	return "", ErrProtocolExhausted
}

func (s *Service) storeAttachment(ctx context.Context, protocol string, f *File) (*Attachment, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(f.Name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "arquivo"
	}
	contentType := strings.TrimSpace(f.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	res, err := s.uploader.Upload(ctx, storage.UploadInput{
		Key:          attachmentKeyPrefix + protocol + "_" + name,
		Body:         f.Data,
		ContentType:  contentType,
		CacheControl: attachmentCacheRules,
	})
	if err != nil {
		return nil, fmt.Errorf("anexo: %w", err)
	}
	return &Attachment{Name: name, Type: contentType, URL: res.URL}, nil
}

// MediaKind classifica o anexo pelo tipo MIME.
func MediaKind(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "audio/"):
		return "audio"
	case strings.HasPrefix(ct, "video/"):
		return "video"
	case strings.HasPrefix(ct, "image/"):
		return "image"
	default:
		return "file"
	}
}

func validateSubmit(in SubmitInput) (Tipo, error) {
	fields := map[string]string{}

	tipo, ok := ParseTipo(in.Tipo)
	if !ok {
		fields["tipo_manifestacao"] = "tipo de manifestação inválido"
	}

	hasFile := in.Arquivo != nil && len(in.Arquivo.Data) > 0
	if strings.TrimSpace(in.Conteudo) == "" && !hasFile {
		fields["conteudo_texto"] = "informe o relato ou anexe um arquivo"
	}

	if !in.Anonimo {
		if email := strings.TrimSpace(in.Email); email != "" {
			if err := util.ValidateEmail(email); err != nil {
				fields["email"] = err.Error()
			}
		}
		if cpf := strings.TrimSpace(in.CPF); cpf != "" {
			if err := util.ValidateCPF(cpf); err != nil {
				fields["cpf"] = err.Error()
			}
		}
	}

	if date := strings.TrimSpace(in.DataOcorrencia); date != "" {
		if err := util.ValidateDate(date); err != nil {
			fields["data_ocorrencia"] = err.Error()
		}
	}

	if len(fields) > 0 {
		return "", &ValidationError{Fields: fields}
	}
	return tipo, nil
}
