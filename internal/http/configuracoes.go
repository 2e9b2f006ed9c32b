package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	httpmiddleware "github.com/participadf/ouvidoria/internal/http/middleware"
	"github.com/participadf/ouvidoria/internal/settings"
	"github.com/participadf/ouvidoria/internal/util"
)

// GetConfiguracoes devolve a configuração corrente do portal.
func (h *Handler) GetConfiguracoes(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.settings.Get())
}

// UpdateConfiguracoes aplica alteração parcial; o store não valida, então a validação fica aqui.
func (h *Handler) UpdateConfiguracoes(w http.ResponseWriter, r *http.Request) {
	var payload settings.Update
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "JSON inválido", nil)
		return
	}

	if details := validateSettings(&payload); len(details) > 0 {
		WriteError(w, http.StatusBadRequest, CodeValidation, "configuração inválida", details)
		return
	}

	subject := httpmiddleware.GetSubject(r.Context())
	updated := h.settings.Update(payload)
	if h.settingsRepo != nil {
		if err := h.settingsRepo.Save(r.Context(), updated, subject); err != nil {
			log.Error().Err(err).Msg("falha ao persistir configurações")
			WriteError(w, http.StatusInternalServerError, CodeInternal, "não foi possível salvar configurações", nil)
			return
		}
	}
	log.Info().
		Str("por", subject).
		Bool("manutencao", updated.MaintenanceMode).
		Int("sla_dias", updated.SLADays).
		Msg("configurações atualizadas")

	WriteJSON(w, http.StatusOK, updated)
}

func validateSettings(u *settings.Update) map[string]string {
	details := map[string]string{}
	if u.PortalName != nil {
		name := util.SanitizeText(*u.PortalName)
		if name == "" {
			details["portalName"] = "nome obrigatório"
		}
		u.PortalName = &name
	}
	if u.SLADays != nil && *u.SLADays <= 0 {
		details["slaDays"] = "prazo deve ser maior que zero"
	}
	if u.PrimaryColor != nil {
		color := strings.TrimSpace(*u.PrimaryColor)
		if err := util.ValidateColor(color); err != nil {
			details["primaryColor"] = err.Error()
		}
		u.PrimaryColor = &color
	}
	return details
}
