// Package form implementa o fluxo do formulário de nova manifestação:
// edição dos campos, escolha do canal, anexo ou gravação e envio remoto.
package form

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/participadf/ouvidoria/internal/capture"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
	"github.com/participadf/ouvidoria/internal/util"
)

// SubmitErrorMessage é exibida quando o envio remoto falha.
const SubmitErrorMessage = "Ocorreu um erro ao enviar sua manifestação. Verifique os campos obrigatórios."

var (
	// ErrBusy indica envio em andamento.
	ErrBusy = errors.New("envio em andamento")
	// ErrAlreadySubmitted indica formulário já enviado.
	ErrAlreadySubmitted = errors.New("manifestação já enviada")
	// ErrUnknownField indica nome de campo desconhecido.
	ErrUnknownField = errors.New("campo desconhecido")
	// ErrWrongChannel indica ação incompatível com o canal escolhido.
	ErrWrongChannel = errors.New("ação indisponível para o canal escolhido")
	// ErrNoDevice indica ausência de dispositivo de captura.
	ErrNoDevice = errors.New("nenhum dispositivo de captura disponível")
	// ErrClosed indica formulário já encerrado.
	ErrClosed = errors.New("formulário encerrado")
)

// State é a etapa do formulário.
type State string

const (
	StateEditing    State = "editing"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
)

// Submitter envia o payload ao endpoint remoto.
type Submitter interface {
	Submit(ctx context.Context, p Payload) (*ouvidoria.Receipt, error)
}

// History guarda a cópia local das manifestações enviadas.
type History interface {
	SaveManifestation(m ouvidoria.Manifestation) ouvidoria.Manifestation
}

// Options configura um formulário novo.
type Options struct {
	Tipo     ouvidoria.Tipo
	Channel  ouvidoria.Channel
	User     *ouvidoria.User
	History  History
	Recorder *capture.Recorder
	Previews *capture.Previews
}

var editableFields = map[string]bool{
	FieldTipo: true, FieldAssunto: true, FieldConteudo: true,
	FieldNome: true, FieldEmail: true, FieldTelefone: true, FieldCPF: true,
	FieldLocal: true, FieldData: true,
}

// Form guarda o estado de uma manifestação em edição.
type Form struct {
	submitter Submitter
	history   History
	recorder  *capture.Recorder
	previews  *capture.Previews
	user      *ouvidoria.User

	mu          sync.Mutex
	state       State
	channel     ouvidoria.Channel
	anonymous   bool
	fields      map[string]string
	attachment  *capture.File
	recording   capture.Kind
	notice      string
	errMsg      string
	fieldErrors map[string]string
	receipt     *ouvidoria.Receipt
	// gen muda a cada troca de canal ou encerramento; invalida aberturas de dispositivo em curso.
	gen    uint64
	closed bool
}

// New cria o formulário. Um cidadão logado tem nome e CPF preenchidos.
func New(submitter Submitter, opts Options) *Form {
	tipo := opts.Tipo
	if tipo == "" {
		tipo = ouvidoria.TipoReclamacao
	}
	channel := opts.Channel
	if channel == "" {
		channel = ouvidoria.ChannelText
	}
	previews := opts.Previews
	if previews == nil {
		previews = capture.NewPreviews()
	}

	f := &Form{
		submitter: submitter,
		history:   opts.History,
		recorder:  opts.Recorder,
		previews:  previews,
		user:      opts.User,
		state:     StateEditing,
		channel:   channel,
		fields:    map[string]string{FieldTipo: string(tipo)},
	}
	if u := opts.User; u != nil && u.Role == ouvidoria.RoleCitizen {
		f.fields[FieldNome] = u.Name
		f.fields[FieldCPF] = u.CPF
	}
	return f
}

// State devolve a etapa atual.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Channel devolve o canal escolhido.
func (f *Form) Channel() ouvidoria.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channel
}

// Field devolve o valor atual do campo.
func (f *Form) Field(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields[name]
}

// Anonymous informa se o envio é anônimo.
func (f *Form) Anonymous() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.anonymous
}

// Attachment devolve o anexo atual.
func (f *Form) Attachment() *capture.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachment == nil {
		return nil
	}
	a := *f.attachment
	return &a
}

// Recording informa se há gravação em andamento.
func (f *Form) Recording() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recording != ""
}

// Notice é o último aviso de acessibilidade (anexo, gravação, permissão).
func (f *Form) Notice() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notice
}

// Error é a mensagem do último envio com falha.
func (f *Form) Error() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errMsg
}

// FieldErrors devolve os erros por campo da última validação.
func (f *Form) FieldErrors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.fieldErrors))
	for k, v := range f.fieldErrors {
		out[k] = v
	}
	return out
}

// Receipt devolve o comprovante após sucesso.
func (f *Form) Receipt() *ouvidoria.Receipt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipt
}

// SetField altera um campo pelo nome usado no envio.
func (f *Form) SetField(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.editableLocked(); err != nil {
		return err
	}
	if !editableFields[name] {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	f.fields[name] = value
	delete(f.fieldErrors, name)
	return nil
}

// SetAnonymous liga ou desliga o envio anônimo.
func (f *Form) SetAnonymous(anonymous bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editableLocked(); err != nil {
		return err
	}
	f.anonymous = anonymous
	return nil
}

// SelectChannel troca o canal; uma gravação ativa é descartada.
func (f *Form) SelectChannel(c ouvidoria.Channel) error {
	if _, ok := ouvidoria.ParseChannel(string(c)); !ok {
		return fmt.Errorf("canal inválido: %q", c)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editableLocked(); err != nil {
		return err
	}
	if f.recording != "" {
		_ = f.recorder.Cancel()
		f.recording = ""
	}
	f.channel = c
	f.gen++
	return nil
}

// Required lista os campos obrigatórios no estado atual.
func (f *Form) Required() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requiredLocked()
}

func (f *Form) requiredLocked() []string {
	req := []string{FieldTipo, FieldAssunto}
	if f.channel == ouvidoria.ChannelText {
		req = append(req, FieldConteudo)
	}
	if !f.anonymous {
		req = append(req, FieldNome, FieldEmail)
	}
	return req
}

// AttachFile anexa um arquivo escolhido pelo cidadão, substituindo o anterior.
func (f *Form) AttachFile(name, contentType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.editableLocked(); err != nil {
		return err
	}
	if f.channel == ouvidoria.ChannelText {
		return ErrWrongChannel
	}
	if len(data) == 0 {
		return errors.New("arquivo vazio")
	}

	file := capture.File{Name: name, ContentType: contentType, Data: append([]byte(nil), data...)}
	kind := ouvidoria.MediaKind(contentType)
	if kind == "audio" || kind == "video" {
		file.PreviewURL = f.previews.Create(file)
	}
	f.replaceAttachmentLocked(&file)
	f.notice = "Arquivo " + name + " anexado com sucesso."
	return nil
}

// RemoveAttachment descarta o anexo atual.
func (f *Form) RemoveAttachment() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaceAttachmentLocked(nil)
}

// StartRecording abre o microfone ou a câmera conforme o canal.
// O dispositivo é aberto sem o lock do formulário; um pedido de permissão
// demorado não trava State, Notice ou Close.
func (f *Form) StartRecording(ctx context.Context) error {
	f.mu.Lock()
	if err := f.startableLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	kind, err := f.captureKindLocked()
	if err != nil {
		f.mu.Unlock()
		return err
	}
	if f.recorder == nil {
		f.mu.Unlock()
		return ErrNoDevice
	}
	if f.recording != "" {
		f.mu.Unlock()
		return capture.ErrAlreadyRecording
	}
	gen := f.gen
	f.mu.Unlock()

	startErr := f.recorder.Start(ctx, kind)

	f.mu.Lock()
	defer f.mu.Unlock()

	if startErr != nil {
		if errors.Is(startErr, capture.ErrPermissionDenied) {
			if kind == capture.KindVideo {
				f.notice = "Não foi possível acessar a câmera. Verifique as permissões."
			} else {
				f.notice = "Não foi possível acessar o microfone."
			}
		}
		return startErr
	}

	// canal trocado, formulário fechado ou enviado enquanto o dispositivo abria
	if err := f.startableLocked(); err != nil || f.gen != gen {
		_ = f.recorder.Cancel()
		if err == nil {
			err = ErrWrongChannel
		}
		return err
	}

	f.recording = kind
	f.notice = "Gravação de " + kindLabel(kind) + " iniciada."
	return nil
}

func (f *Form) startableLocked() error {
	if f.closed {
		return ErrClosed
	}
	return f.editableLocked()
}

// StopRecording finaliza a gravação e a usa como anexo.
func (f *Form) StopRecording() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.recording == "" || f.recorder == nil {
		return capture.ErrNotRecording
	}
	kind := f.recording
	f.recording = ""

	file, err := f.recorder.Stop()
	if err != nil {
		return err
	}
	if file.PreviewURL == "" {
		file.PreviewURL = f.previews.Create(file)
	}
	f.replaceAttachmentLocked(&file)
	f.notice = "Gravação de " + kindLabel(kind) + " finalizada e anexada."
	return nil
}

// CancelRecording descarta a gravação sem anexar nada.
func (f *Form) CancelRecording() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.recording == "" || f.recorder == nil {
		return capture.ErrNotRecording
	}
	f.recording = ""
	return f.recorder.Cancel()
}

// Validate devolve os erros por campo; mapa vazio significa formulário válido.
func (f *Form) Validate() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateLocked()
}

func (f *Form) validateLocked() map[string]string {
	errs := map[string]string{}
	for _, name := range f.requiredLocked() {
		if strings.TrimSpace(f.fields[name]) == "" {
			errs[name] = "campo obrigatório"
		}
	}

	if _, ok := ouvidoria.ParseTipo(f.fields[FieldTipo]); !ok && errs[FieldTipo] == "" {
		errs[FieldTipo] = "tipo de manifestação inválido"
	}

	if f.channel != ouvidoria.ChannelText && f.attachment == nil && strings.TrimSpace(f.fields[FieldConteudo]) == "" {
		errs[FieldArquivo] = "anexe um arquivo ou descreva o relato"
	}
	if f.recording != "" {
		errs[FieldArquivo] = "finalize a gravação antes de enviar"
	}

	if !f.anonymous {
		if email := strings.TrimSpace(f.fields[FieldEmail]); email != "" {
			if err := util.ValidateEmail(email); err != nil {
				errs[FieldEmail] = err.Error()
			}
		}
		if cpf := strings.TrimSpace(f.fields[FieldCPF]); cpf != "" {
			if err := util.ValidateCPF(cpf); err != nil {
				errs[FieldCPF] = err.Error()
			}
		}
	}
	if date := strings.TrimSpace(f.fields[FieldData]); date != "" {
		if err := util.ValidateDate(date); err != nil {
			errs[FieldData] = err.Error()
		}
	}
	return errs
}

// Payload monta os campos de envio. Dados pessoais só vão quando não anônimo.
func (f *Form) Payload() Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payloadLocked()
}

func (f *Form) payloadLocked() Payload {
	assunto := strings.TrimSpace(f.fields[FieldAssunto])
	if assunto == "" {
		assunto = "Geral"
	}

	p := Payload{Fields: []Field{
		{FieldTipo, f.fields[FieldTipo]},
		{FieldAssunto, assunto},
		{FieldConteudo, f.fields[FieldConteudo]},
		{FieldAnonimo, strconv.FormatBool(f.anonymous)},
	}}

	optional := func(name string) {
		if v := strings.TrimSpace(f.fields[name]); v != "" {
			p.Fields = append(p.Fields, Field{name, v})
		}
	}
	if !f.anonymous {
		optional(FieldNome)
		optional(FieldEmail)
		optional(FieldTelefone)
		optional(FieldCPF)
	}
	optional(FieldLocal)
	optional(FieldData)

	if f.attachment != nil {
		a := *f.attachment
		p.File = &a
	}
	return p
}

// Submit valida e envia. Em falha o formulário volta à edição com os campos preservados.
func (f *Form) Submit(ctx context.Context) (*ouvidoria.Receipt, error) {
	f.mu.Lock()
	if err := f.editableLocked(); err != nil {
		f.mu.Unlock()
		return nil, err
	}

	if errs := f.validateLocked(); len(errs) > 0 {
		f.fieldErrors = errs
		f.mu.Unlock()
		return nil, &ouvidoria.ValidationError{Fields: errs}
	}

	payload := f.payloadLocked()
	f.fieldErrors = nil
	f.errMsg = ""
	f.state = StateSubmitting
	f.mu.Unlock()

	receipt, err := f.submitter.Submit(ctx, payload)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		f.state = StateEditing
		f.errMsg = SubmitErrorMessage
		return nil, fmt.Errorf("enviar manifestação: %w", err)
	}

	f.state = StateSuccess
	f.receipt = receipt
	f.notice = "Manifestação enviada com sucesso. Protocolo gerado."
	if f.history != nil {
		f.history.SaveManifestation(f.localCopyLocked(receipt))
	}
	return receipt, nil
}

// Close libera dispositivo e URLs de pré-visualização.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.gen++
	if f.recorder != nil {
		f.recorder.Close()
	}
	f.recording = ""
	f.previews.RevokeAll()
}

func (f *Form) localCopyLocked(r *ouvidoria.Receipt) ouvidoria.Manifestation {
	tipo, _ := ouvidoria.ParseTipo(f.fields[FieldTipo])
	status, err := ouvidoria.ParseStatus(r.Status)
	if err != nil {
		status = ouvidoria.StatusEmAnalise
	}

	m := ouvidoria.Manifestation{
		Protocol:       r.Protocolo,
		Type:           tipo,
		Subject:        r.Assunto,
		Content:        f.fields[FieldConteudo],
		Date:           r.CreatedAt,
		Status:         status,
		Local:          strings.TrimSpace(f.fields[FieldLocal]),
		OccurrenceDate: strings.TrimSpace(f.fields[FieldData]),
		IsAnonymous:    f.anonymous,
	}
	if !f.anonymous {
		m.OwnerCPF = util.FormatCPF(f.fields[FieldCPF])
		if m.OwnerCPF == "" && f.user != nil {
			m.OwnerCPF = f.user.CPF
		}
		m.Name = strings.TrimSpace(f.fields[FieldNome])
		m.Email = strings.TrimSpace(f.fields[FieldEmail])
		m.Phone = strings.TrimSpace(f.fields[FieldTelefone])
	}
	if a := f.attachment; a != nil {
		url := a.PreviewURL
		if url == "" {
			url = f.previews.Create(*a)
		}
		m.Attachment = &ouvidoria.Attachment{Name: a.Name, Type: a.ContentType, URL: url}
		m.MediaKind = ouvidoria.MediaKind(a.ContentType)
	}
	return m
}

func (f *Form) editableLocked() error {
	switch f.state {
	case StateSubmitting:
		return ErrBusy
	case StateSuccess:
		return ErrAlreadySubmitted
	}
	return nil
}

func (f *Form) captureKindLocked() (capture.Kind, error) {
	switch f.channel {
	case ouvidoria.ChannelAudio:
		return capture.KindAudio, nil
	case ouvidoria.ChannelVideo:
		return capture.KindVideo, nil
	}
	return "", ErrWrongChannel
}

func (f *Form) replaceAttachmentLocked(file *capture.File) {
	if f.attachment != nil && f.attachment.PreviewURL != "" {
		f.previews.Revoke(f.attachment.PreviewURL)
	}
	f.attachment = file
}

func kindLabel(k capture.Kind) string {
	if k == capture.KindVideo {
		return "vídeo"
	}
	return "áudio"
}
