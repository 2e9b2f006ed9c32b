package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/participadf/ouvidoria/internal/auth"
	"github.com/participadf/ouvidoria/internal/dashboard"
	httpmiddleware "github.com/participadf/ouvidoria/internal/http/middleware"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
	"github.com/participadf/ouvidoria/internal/service"
	"github.com/participadf/ouvidoria/internal/util"
)

// Login autentica cidadão, atendente ou administrador por usuário ou CPF.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Identificador string `json:"identificador"`
		Senha         string `json:"senha"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "JSON inválido", nil)
		return
	}

	identifier := strings.TrimSpace(payload.Identificador)
	if identifier == "" || payload.Senha == "" {
		WriteError(w, http.StatusBadRequest, CodeValidation, "identificador e senha são obrigatórios", nil)
		return
	}

	if !h.loginLimiter.Allow(loginKey(identifier)) {
		w.Header().Set("Retry-After", "12")
		WriteError(w, http.StatusTooManyRequests, CodeRateLimit, "muitas tentativas, aguarde", nil)
		return
	}

	result, err := h.authService.Login(r.Context(), identifier, payload.Senha)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusOK, result)
}

// loginKey agrupa "123.456.789-09" e "12345678909" no mesmo balde.
func loginKey(identifier string) string {
	if digits := util.DigitsOnly(identifier); len(digits) == 11 {
		return "cpf:" + digits
	}
	return "user:" + strings.ToLower(identifier)
}

// Cadastro registra cidadão e já devolve a sessão.
func (h *Handler) Cadastro(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.authService.Register(r.Context(), payload.Nome, payload.CPF, payload.Senha)
	if err != nil {
		h.handleUserError(w, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusCreated, result)
}

// Refresh rotaciona token de acesso.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	audience, token, err := getRefreshFromRequest(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, CodeAuth, "refresh ausente", nil)
		return
	}

	result, err := h.authService.Refresh(r.Context(), audience, token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefreshInvalid), errors.Is(err, service.ErrNoEligibleRoles):
			h.clearRefreshCookie(w, audience)
			WriteError(w, http.StatusUnauthorized, CodeAuth, "refresh inválido", nil)
		case errors.Is(err, service.ErrRefreshUnavailable):
			WriteError(w, http.StatusUnauthorized, CodeAuth, err.Error(), nil)
		default:
			WriteError(w, http.StatusInternalServerError, CodeInternal, "erro ao renovar sessão", nil)
		}
		return
	}

	h.writeLoginSuccess(w, http.StatusOK, result)
}

// Logout revoga refresh token atual.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if audience, token, err := getRefreshFromRequest(r); err == nil {
		_ = h.authService.Logout(r.Context(), audience, token)
	}

	h.clearRefreshCookie(w, auth.AudienceCidadao)
	h.clearRefreshCookie(w, auth.AudienceBackoffice)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me retorna informações do usuário autenticado.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	profile, roles, err := h.authService.MeProfile(r.Context(), httpmiddleware.GetSubject(r.Context()))
	if err != nil {
		if errors.Is(err, service.ErrUnknownUser) || errors.Is(err, service.ErrNoEligibleRoles) {
			WriteError(w, http.StatusUnauthorized, CodeAuth, err.Error(), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, CodeInternal, "não foi possível carregar perfil", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"user":  profile,
		"roles": roles,
	})
}

// MinhasManifestacoes lista o histórico do cidadão pelo CPF da conta.
func (h *Handler) MinhasManifestacoes(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	items, err := h.manifestacoes.ByOwner(r.Context(), user.CPF)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, CodeInternal, "não foi possível carregar manifestações", nil)
		return
	}

	out := make([]ouvidoria.Receipt, 0, len(items))
	for _, m := range items {
		out = append(out, ouvidoria.NewReceipt(m))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"manifestacoes": out})
}

// currentUser carrega o dono do token; escreve 401 quando ele não existe mais.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (ouvidoria.User, bool) {
	user, _, err := h.authService.Me(r.Context(), httpmiddleware.GetSubject(r.Context()))
	if err != nil {
		WriteError(w, http.StatusUnauthorized, CodeAuth, "usuário não encontrado", nil)
		return ouvidoria.User{}, false
	}
	return user, true
}

func (h *Handler) handleAuthError(w http.ResponseWriter, err error) {
	switch err {
	case service.ErrInvalidCredentials:
		WriteError(w, http.StatusUnauthorized, CodeAuth, err.Error(), nil)
	case service.ErrNoEligibleRoles:
		WriteError(w, http.StatusForbidden, CodeForbidden, err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, CodeInternal, "erro ao autenticar", nil)
	}
}

// handleUserError traduz erros de cadastro de usuários.
func (h *Handler) handleUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dashboard.ErrUserExists):
		WriteError(w, http.StatusConflict, CodeConflict, err.Error(), nil)
	case errors.Is(err, dashboard.ErrInvalidUser):
		WriteError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
	case errors.Is(err, dashboard.ErrUserNotFound):
		WriteError(w, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.Is(err, dashboard.ErrSelfRemoval):
		WriteError(w, http.StatusConflict, CodeConflict, err.Error(), nil)
	default:
		h.handleAuthError(w, err)
	}
}

func (h *Handler) writeLoginSuccess(w http.ResponseWriter, status int, result *service.LoginResult) {
	if result.RefreshToken != "" {
		h.setRefreshCookie(w, result.Audience, result.RefreshToken, result.RefreshExpiry)
	}

	WriteJSON(w, status, map[string]any{
		"access_token": result.AccessToken,
		"expires_at":   result.AccessExpiry,
		"user":         result.Profile,
		"roles":        result.Roles,
	})
}

// Os cookies de refresh têm o nome da audiência.
func getRefreshFromRequest(r *http.Request) (string, string, error) {
	for _, audience := range []string{auth.AudienceBackoffice, auth.AudienceCidadao} {
		if c, err := r.Cookie(audience); err == nil && c.Value != "" {
			return audience, c.Value, nil
		}
	}
	return "", "", errors.New("refresh ausente")
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, audience, token string, expires time.Time) {
	h.writeRefreshCookie(w, &http.Cookie{
		Name:    audience,
		Value:   token,
		Expires: expires,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter, audience string) {
	h.writeRefreshCookie(w, &http.Cookie{
		Name:   audience,
		MaxAge: -1,
	})
}

func (h *Handler) writeRefreshCookie(w http.ResponseWriter, c *http.Cookie) {
	c.Path = "/auth"
	c.HttpOnly = true
	c.Secure = !h.devCookies
	c.SameSite = http.SameSiteNoneMode
	if h.devCookies {
		c.SameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, c)
}
