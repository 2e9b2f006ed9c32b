package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/participadf/ouvidoria/internal/auth"
	"github.com/participadf/ouvidoria/internal/form"
	httpmiddleware "github.com/participadf/ouvidoria/internal/http/middleware"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
	"github.com/participadf/ouvidoria/internal/storage"
)

// FieldGravacao referencia uma gravação enviada em trechos para /api/gravacoes.
const FieldGravacao = "gravacao_id"

// multipartOverhead cobre campos de texto e boundaries além do arquivo.
const multipartOverhead = 1 << 20

// NovaManifestacao recebe o formulário multipart do portal.
func (h *Handler) NovaManifestacao(w http.ResponseWriter, r *http.Request) {
	limit := h.cfg.Storage.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, CodeValidation, fmt.Sprintf("arquivo excede %d MB", h.cfg.Storage.MaxUploadMB), nil)
			return
		}
		WriteError(w, http.StatusBadRequest, CodeValidation, "dados multipart inválidos", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := ouvidoria.SubmitInput{
		Tipo:           r.FormValue(form.FieldTipo),
		Assunto:        r.FormValue(form.FieldAssunto),
		Conteudo:       r.FormValue(form.FieldConteudo),
		Anonimo:        parseFormBool(r.FormValue(form.FieldAnonimo)),
		Nome:           r.FormValue(form.FieldNome),
		Email:          r.FormValue(form.FieldEmail),
		Telefone:       r.FormValue(form.FieldTelefone),
		CPF:            r.FormValue(form.FieldCPF),
		Local:          r.FormValue(form.FieldLocal),
		DataOcorrencia: r.FormValue(form.FieldData),
	}

	if len(r.MultipartForm.File[form.FieldArquivo]) > 0 {
		header, err := getFirstFile(r.MultipartForm, form.FieldArquivo)
		if err != nil {
			WriteError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
			return
		}
		data, contentType, err := readMultipartFile(header, limit)
		if err != nil {
			WriteError(w, http.StatusBadRequest, CodeValidation, err.Error(), map[string]string{form.FieldArquivo: err.Error()})
			return
		}
		in.Arquivo = &ouvidoria.File{Name: header.Filename, ContentType: contentType, Data: data}
	} else if id := strings.TrimSpace(r.FormValue(FieldGravacao)); id != "" {
		rec, ok := h.sessions.Take(id)
		if !ok {
			msg := "gravação não encontrada ou não finalizada"
			WriteError(w, http.StatusBadRequest, CodeValidation, msg, map[string]string{FieldGravacao: msg})
			return
		}
		in.Arquivo = &ouvidoria.File{Name: rec.Name, ContentType: rec.ContentType, Data: rec.Data}
	}

	// cidadão logado não precisa redigitar o CPF
	if !in.Anonimo && strings.TrimSpace(in.CPF) == "" && httpmiddleware.GetAudience(r.Context()) == auth.AudienceCidadao {
		if user, _, err := h.authService.Me(r.Context(), httpmiddleware.GetSubject(r.Context())); err == nil {
			in.CPF = user.CPF
			if strings.TrimSpace(in.Nome) == "" {
				in.Nome = user.Name
			}
		}
	}

	m, err := h.manifestacoes.Submit(r.Context(), in)
	if err != nil {
		h.handleSubmitError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{"manifestacao": ouvidoria.NewReceipt(m)})
}

func (h *Handler) handleSubmitError(w http.ResponseWriter, err error) {
	var invalid *ouvidoria.ValidationError
	switch {
	case errors.As(err, &invalid):
		WriteError(w, http.StatusBadRequest, CodeValidation, "campos inválidos", invalid.Fields)
	case errors.Is(err, ouvidoria.ErrMaintenance):
		WriteError(w, http.StatusServiceUnavailable, CodeMaintenance, err.Error(), nil)
	case errors.Is(err, ouvidoria.ErrAnonymousDisabled):
		WriteError(w, http.StatusForbidden, CodeForbidden, err.Error(), nil)
	case errors.Is(err, storage.ErrNotConfigured):
		WriteError(w, http.StatusServiceUnavailable, CodeInternal, "armazenamento indisponível", nil)
	default:
		log.Error().Err(err).Msg("falha ao registrar manifestação")
		WriteError(w, http.StatusInternalServerError, CodeInternal, "não foi possível registrar a manifestação", nil)
	}
}

// ConsultarProtocolo devolve o andamento sem dados pessoais.
func (h *Handler) ConsultarProtocolo(w http.ResponseWriter, r *http.Request) {
	m, err := h.manifestacoes.Lookup(r.Context(), chi.URLParam(r, "protocolo"))
	if err != nil {
		if errors.Is(err, ouvidoria.ErrNotFound) {
			WriteError(w, http.StatusNotFound, CodeNotFound, "protocolo não encontrado", nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, CodeInternal, "não foi possível consultar o protocolo", nil)
		return
	}
	WriteJSON(w, http.StatusOK, ouvidoria.NewPublicStatus(m))
}

// Portal expõe a configuração pública usada pelo front-end.
func (h *Handler) Portal(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.settings.Get())
}

func parseFormBool(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "on" || value == "sim" {
		return true
	}
	b, _ := strconv.ParseBool(value)
	return b
}

func getFirstFile(form *multipart.Form, field string) (*multipart.FileHeader, error) {
	if form == nil {
		return nil, errors.New("arquivo ausente")
	}
	files := form.File[field]
	if len(files) == 0 {
		return nil, errors.New("arquivo ausente")
	}
	return files[0], nil
}

func readMultipartFile(header *multipart.FileHeader, limit int64) ([]byte, string, error) {
	file, err := header.Open()
	if err != nil {
		return nil, "", fmt.Errorf("falha ao abrir arquivo: %w", err)
	}
	defer file.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(file, limit+1)); err != nil {
		return nil, "", fmt.Errorf("falha ao ler arquivo: %w", err)
	}

	if int64(buf.Len()) > limit {
		return nil, "", fmt.Errorf("arquivo excede %d bytes", limit)
	}

	contentType := header.Header.Get("Content-Type")
	if strings.TrimSpace(contentType) == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(buf.Bytes())
	}

	return buf.Bytes(), contentType, nil
}
