package ouvidoria

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrNotFound é retornado quando o protocolo não existe.
	ErrNotFound = errors.New("manifestação não encontrada")
	// ErrInvalidStatus indica status fora da lista aceita.
	ErrInvalidStatus = errors.New("status inválido")
	// ErrMaintenance indica portal em manutenção.
	ErrMaintenance = errors.New("portal em manutenção")
	// ErrAnonymousDisabled indica que o envio anônimo está desativado.
	ErrAnonymousDisabled = errors.New("envio anônimo desativado")
)

// Role define o papel de um usuário do portal.
type Role string

const (
	RoleCitizen   Role = "citizen"
	RoleAdmin     Role = "admin"
	RoleAttendant Role = "attendant"
)

// User representa cidadão, atendente ou administrador.
type User struct {
	Username     string `json:"username" yaml:"username"`
	CPF          string `json:"cpf" yaml:"cpf"`
	PasswordHash string `json:"-" yaml:"-"`
	Name         string `json:"name,omitempty" yaml:"name"`
	Role         Role   `json:"role" yaml:"role"`
}

// DisplayName devolve o nome ou, na falta dele, o usuário.
func (u User) DisplayName() string {
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return u.Username
}

// Status é o andamento de uma manifestação.
type Status string

const (
	StatusEmAnalise   Status = "EM ANÁLISE"
	StatusEmAndamento Status = "EM ANDAMENTO"
	StatusConcluido   Status = "CONCLUÍDO"
	StatusRecusado    Status = "RECUSADO"
)

// Statuses lista os status na ordem exibida no painel.
var Statuses = []Status{StatusEmAnalise, StatusEmAndamento, StatusConcluido, StatusRecusado}

// ParseStatus aceita o status com ou sem acentuação e caixa diferente.
func ParseStatus(value string) (Status, error) {
	normalized := strings.ReplaceAll(foldAccents(value), "_", " ")
	for _, st := range Statuses {
		if foldAccents(string(st)) == normalized {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// Open indica se o status ainda conta para o prazo de resposta.
func (s Status) Open() bool {
	return s == StatusEmAnalise || s == StatusEmAndamento
}

// Tipo é a categoria da manifestação.
type Tipo string

const (
	TipoDenuncia    Tipo = "Denúncia"
	TipoReclamacao  Tipo = "Reclamação"
	TipoSugestao    Tipo = "Sugestão"
	TipoElogio      Tipo = "Elogio"
	TipoSolicitacao Tipo = "Solicitação"
)

// Tipos lista as categorias aceitas.
var Tipos = []Tipo{TipoDenuncia, TipoReclamacao, TipoSugestao, TipoElogio, TipoSolicitacao}

// ParseTipo reconhece a categoria ignorando acentos e caixa.
func ParseTipo(value string) (Tipo, bool) {
	normalized := foldAccents(value)
	for _, t := range Tipos {
		if foldAccents(string(t)) == normalized {
			return t, true
		}
	}
	return "", false
}

// Channel é o meio escolhido para relatar.
type Channel string

const (
	ChannelText   Channel = "TEXT"
	ChannelAudio  Channel = "AUDIO"
	ChannelVideo  Channel = "VIDEO"
	ChannelUpload Channel = "UPLOAD"
)

// ParseChannel valida o canal informado.
func ParseChannel(value string) (Channel, bool) {
	switch c := Channel(strings.ToUpper(strings.TrimSpace(value))); c {
	case ChannelText, ChannelAudio, ChannelVideo, ChannelUpload:
		return c, true
	}
	return "", false
}

// Attachment descreve o arquivo anexado.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Analysis guarda o resultado da análise preliminar da IZA.
type Analysis struct {
	Service    string   `json:"service"`
	Sentiment  string   `json:"sentimento"`
	Confidence float64  `json:"confianca"`
	Topics     []string `json:"topicos_detectados"`
}

// Manifestation é o registro de uma manifestação.
type Manifestation struct {
	Protocol       string      `json:"protocol"`
	Type           Tipo        `json:"type"`
	Subject        string      `json:"subject"`
	Content        string      `json:"content"`
	OwnerCPF       string      `json:"ownerCpf,omitempty"`
	Name           string      `json:"name,omitempty"`
	Email          string      `json:"email,omitempty"`
	Phone          string      `json:"phone,omitempty"`
	Date           time.Time   `json:"date"`
	Status         Status      `json:"status"`
	Local          string      `json:"local,omitempty"`
	OccurrenceDate string      `json:"occurrenceDate,omitempty"`
	IsAnonymous    bool        `json:"isAnonymous"`
	MediaKind      string      `json:"mediaKind,omitempty"`
	Attachment     *Attachment `json:"attachment,omitempty"`
	Response       string      `json:"response,omitempty"`
	ResponseTime   *time.Time  `json:"responseTime,omitempty"`
	ResponderName  string      `json:"responderName,omitempty"`
	Analysis       *Analysis   `json:"iaAnalysis,omitempty"`
}

// StripIdentity remove os dados pessoais de manifestações anônimas.
func (m *Manifestation) StripIdentity() {
	if !m.IsAnonymous {
		return
	}
	m.OwnerCPF = ""
	m.Name = ""
	m.Email = ""
	m.Phone = ""
}

// ManifestationPatch carrega uma atualização parcial; campos nil ficam intactos.
type ManifestationPatch struct {
	Status        *Status
	Response      *string
	ResponseTime  *time.Time
	ResponderName *string
	Local         *string
	Attachment    *Attachment
}

// Apply mescla o patch no registro.
func (p ManifestationPatch) Apply(m *Manifestation) {
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.Response != nil {
		m.Response = *p.Response
	}
	if p.ResponseTime != nil {
		t := *p.ResponseTime
		m.ResponseTime = &t
	}
	if p.ResponderName != nil {
		m.ResponderName = *p.ResponderName
	}
	if p.Local != nil {
		m.Local = *p.Local
	}
	if p.Attachment != nil {
		a := *p.Attachment
		m.Attachment = &a
	}
}

// foldAccents remove as marcas diacríticas e põe em maiúsculas: "Denúncia" vira "DENUNCIA".
func foldAccents(s string) string {
	// transform.Chain guarda estado; cada chamada monta a sua
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		folded = strings.TrimSpace(s)
	}
	return strings.ToUpper(folded)
}

var accentFolder = strings.NewReplacer(
	"Á", "A", "À", "A", "Â", "A", "Ã", "A",
	"É", "E", "Ê", "E",
	"Í", "I",
	"Ó", "O", "Ô", "O", "Õ", "O",
	"Ú", "U", "Ü", "U",
	"Ç", "C",
)
