package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	httpmiddleware "github.com/participadf/ouvidoria/internal/http/middleware"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
	"github.com/participadf/ouvidoria/internal/util"
)

// ListarAtendentes devolve a equipe de atendimento.
func (h *Handler) ListarAtendentes(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"usuarios": nonNilUsers(h.dashboard.Attendants())})
}

// CriarAtendente cadastra atendente com CPF provisório.
func (h *Handler) CriarAtendente(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nome     string `json:"nome"`
		Username string `json:"username"`
		Senha    string `json:"senha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "JSON inválido", nil)
		return
	}

	user, err := h.dashboard.CreateAttendant(payload.Nome, payload.Username, payload.Senha)
	if err != nil {
		h.handleUserError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, user)
}

// ListarCidadaos devolve os cidadãos cadastrados.
func (h *Handler) ListarCidadaos(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"usuarios": nonNilUsers(h.dashboard.Citizens())})
}

// CriarCidadao cadastra cidadão pelo painel.
func (h *Handler) CriarCidadao(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Nome  string `json:"nome"`
		CPF   string `json:"cpf"`
		Senha string `json:"senha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "JSON inválido", nil)
		return
	}
	if err := util.ValidatePassword(payload.Senha); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, err.Error(), map[string]string{"senha": err.Error()})
		return
	}

	user, err := h.dashboard.CreateCitizen(payload.Nome, payload.CPF, payload.Senha)
	if err != nil {
		h.handleUserError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, user)
}

// RemoverUsuario exclui pelo username exato; o próprio administrador não pode se remover.
func (h *Handler) RemoverUsuario(w http.ResponseWriter, r *http.Request) {
	actor := httpmiddleware.GetSubject(r.Context())
	if err := h.dashboard.RemoveUser(actor, chi.URLParam(r, "username")); err != nil {
		h.handleUserError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNilUsers(users []ouvidoria.User) []ouvidoria.User {
	if users == nil {
		return []ouvidoria.User{}
	}
	return users
}
