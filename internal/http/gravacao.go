package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/participadf/ouvidoria/internal/capture"
)

// IniciarGravacao abre uma sessão para o navegador enviar os trechos do MediaRecorder.
func (h *Handler) IniciarGravacao(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Tipo string `json:"tipo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "JSON inválido", nil)
		return
	}

	kind, ok := capture.ParseKind(payload.Tipo)
	if !ok {
		WriteError(w, http.StatusBadRequest, CodeValidation, "tipo deve ser audio ou video", map[string]string{"tipo": "inválido"})
		return
	}

	id, err := h.sessions.Begin(kind)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, CodeInternal, "não foi possível iniciar a gravação", nil)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"id":   id,
		"tipo": kind,
	})
}

// EnviarTrecho acrescenta o corpo da requisição à gravação.
func (h *Handler) EnviarTrecho(w http.ResponseWriter, r *http.Request) {
	limit := h.cfg.Storage.MaxUploadBytes()
	chunk, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, CodeValidation, capture.ErrRecordingTooLarge.Error(), nil)
			return
		}
		WriteError(w, http.StatusBadRequest, CodeValidation, "trecho inválido", nil)
		return
	}
	if len(chunk) == 0 {
		WriteError(w, http.StatusBadRequest, CodeValidation, "trecho vazio", nil)
		return
	}

	if err := h.sessions.Append(r.Context(), chi.URLParam(r, "id"), chunk); err != nil {
		h.handleRecordingError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]int{"recebido": len(chunk)})
}

// FinalizarGravacao fecha a captura; o arquivo fica guardado até o envio do formulário.
func (h *Handler) FinalizarGravacao(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, err := h.sessions.Finish(r.Context(), id)
	if err != nil {
		h.handleRecordingError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"id":           id,
		"nome":         f.Name,
		"content_type": f.ContentType,
		"tamanho":      len(f.Data),
	})
}

// CancelarGravacao descarta a sessão.
func (h *Handler) CancelarGravacao(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Cancel(chi.URLParam(r, "id")) {
		WriteError(w, http.StatusNotFound, CodeNotFound, capture.ErrSessionNotFound.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRecordingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, capture.ErrSessionNotFound):
		WriteError(w, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.Is(err, capture.ErrSessionFinished):
		WriteError(w, http.StatusConflict, CodeConflict, err.Error(), nil)
	case errors.Is(err, capture.ErrRecordingTooLarge):
		WriteError(w, http.StatusRequestEntityTooLarge, CodeValidation, err.Error(), nil)
	case errors.Is(err, capture.ErrEmptyRecording):
		WriteError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, CodeInternal, "falha na gravação", nil)
	}
}
