package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/participadf/ouvidoria/internal/dashboard"
	"github.com/participadf/ouvidoria/internal/monitor"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
)

// AdminResumo traz os contadores do topo do painel.
func (h *Handler) AdminResumo(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dashboard.Summary(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, CodeInternal, "não foi possível carregar resumo", nil)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

// AdminListar aceita ?busca=&status=&tipo=&local=.
func (h *Handler) AdminListar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := dashboard.Filter{
		Search: strings.TrimSpace(q.Get("busca")),
		Local:  strings.TrimSpace(q.Get("local")),
	}

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		st, err := ouvidoria.ParseStatus(raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, CodeValidation, err.Error(), map[string]string{"status": raw})
			return
		}
		filter.Status = st
	}
	if raw := strings.TrimSpace(q.Get("tipo")); raw != "" {
		tipo, ok := ouvidoria.ParseTipo(raw)
		if !ok {
			WriteError(w, http.StatusBadRequest, CodeValidation, "tipo de manifestação inválido", map[string]string{"tipo": raw})
			return
		}
		filter.Tipo = tipo
	}

	items, err := h.dashboard.List(r.Context(), filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, CodeInternal, "não foi possível listar manifestações", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"manifestacoes": items,
		"total":         len(items),
	})
}

// AdminDetalhe devolve o registro completo.
func (h *Handler) AdminDetalhe(w http.ResponseWriter, r *http.Request) {
	m, err := h.dashboard.Get(r.Context(), chi.URLParam(r, "protocolo"))
	if err != nil {
		h.handleManifestationError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, m)
}

// AdminStatus altera o status; qualquer transição entre status válidos é aceita.
func (h *Handler) AdminStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "JSON inválido", nil)
		return
	}

	m, err := h.dashboard.SetStatus(r.Context(), chi.URLParam(r, "protocolo"), payload.Status)
	if err != nil {
		h.handleManifestationError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, m)
}

// AdminResponder grava a resposta oficial e conclui a manifestação.
func (h *Handler) AdminResponder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Resposta string `json:"resposta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "JSON inválido", nil)
		return
	}

	responder, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	m, err := h.dashboard.Respond(r.Context(), chi.URLParam(r, "protocolo"), payload.Resposta, responder)
	if err != nil {
		h.handleManifestationError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) handleManifestationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ouvidoria.ErrNotFound):
		WriteError(w, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.Is(err, ouvidoria.ErrInvalidStatus):
		WriteError(w, http.StatusBadRequest, CodeValidation, err.Error(), map[string]string{"status": err.Error()})
	case errors.Is(err, dashboard.ErrEmptyResponse):
		WriteError(w, http.StatusBadRequest, CodeValidation, err.Error(), map[string]string{"resposta": err.Error()})
	default:
		log.Error().Err(err).Msg("painel: falha ao atualizar manifestação")
		WriteError(w, http.StatusInternalServerError, CodeInternal, "não foi possível atualizar a manifestação", nil)
	}
}

// AdminSLA lista manifestações abertas além do prazo.
func (h *Handler) AdminSLA(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		WriteError(w, http.StatusServiceUnavailable, CodeInternal, "monitor indisponível", nil)
		return
	}

	overdue, err := h.monitor.Overdue(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, CodeInternal, "não foi possível calcular prazos", nil)
		return
	}
	if overdue == nil {
		overdue = []monitor.Overdue{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"prazo_dias": h.settings.Get().SLADays,
		"atrasadas":  overdue,
	})
}

// AdminSLAVerificar dispara uma verificação imediata com alertas.
func (h *Handler) AdminSLAVerificar(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		WriteError(w, http.StatusServiceUnavailable, CodeInternal, "monitor indisponível", nil)
		return
	}

	if err := h.monitor.RunOnce(r.Context()); err != nil {
		WriteError(w, http.StatusInternalServerError, CodeInternal, "falha ao executar verificação", nil)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}
