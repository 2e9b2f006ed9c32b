package ouvidoria

import (
	"context"
	"time"
)

// Repository abstrai onde as manifestações ficam guardadas.
type Repository interface {
	SaveManifestation(ctx context.Context, m Manifestation) (Manifestation, error)
	Manifestations(ctx context.Context) ([]Manifestation, error)
	ManifestationsByUser(ctx context.Context, cpf string) ([]Manifestation, error)
	FindManifestationByProtocol(ctx context.Context, protocol string) (Manifestation, error)
	UpdateManifestation(ctx context.Context, protocol string, patch ManifestationPatch) (bool, error)
}

// Receipt é a resposta do endpoint de envio.
type Receipt struct {
	Protocolo        string    `json:"protocolo"`
	TipoManifestacao string    `json:"tipo_manifestacao"`
	Assunto          string    `json:"assunto"`
	ConteudoTexto    string    `json:"conteudo_texto"`
	IsAnonimo        bool      `json:"is_anonimo"`
	Nome             *string   `json:"nome"`
	Email            *string   `json:"email"`
	Telefone         *string   `json:"telefone"`
	CPF              *string   `json:"cpf"`
	LocalOcorrencia  *string   `json:"local_ocorrencia"`
	DataOcorrencia   *string   `json:"data_ocorrencia"`
	CaminhoMidia     *string   `json:"caminho_midia"`
	TipoMidia        *string   `json:"tipo_midia"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	AnaliseIA        *Analysis `json:"analise_ia,omitempty"`
}

// NewReceipt converte o registro salvo no formato devolvido ao cidadão.
func NewReceipt(m Manifestation) Receipt {
	r := Receipt{
		Protocolo:        m.Protocol,
		TipoManifestacao: string(m.Type),
		Assunto:          m.Subject,
		ConteudoTexto:    m.Content,
		IsAnonimo:        m.IsAnonymous,
		Nome:             optional(m.Name),
		Email:            optional(m.Email),
		Telefone:         optional(m.Phone),
		CPF:              optional(m.OwnerCPF),
		LocalOcorrencia:  optional(m.Local),
		DataOcorrencia:   optional(m.OccurrenceDate),
		TipoMidia:        optional(m.MediaKind),
		Status:           string(m.Status),
		CreatedAt:        m.Date,
		AnaliseIA:        m.Analysis,
	}
	if m.Attachment != nil {
		r.CaminhoMidia = optional(m.Attachment.URL)
	}
	return r
}

// PublicStatus é a visão restrita usada na consulta por protocolo.
type PublicStatus struct {
	Protocolo    string     `json:"protocolo"`
	Tipo         string     `json:"tipo_manifestacao"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	Resposta     *string    `json:"resposta,omitempty"`
	RespondidoEm *time.Time `json:"respondido_em,omitempty"`
}

// NewPublicStatus monta a consulta pública sem dados pessoais.
func NewPublicStatus(m Manifestation) PublicStatus {
	return PublicStatus{
		Protocolo:    m.Protocol,
		Tipo:         string(m.Type),
		Status:       string(m.Status),
		CreatedAt:    m.Date,
		Resposta:     optional(m.Response),
		RespondidoEm: m.ResponseTime,
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
