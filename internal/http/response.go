package http

import (
	"encoding/json"
	"net/http"
)

// Códigos de erro devolvidos em error.code; o cliente da ouvidoria decide por eles.
const (
	CodeValidation  = "VALIDATION"
	CodeAuth        = "AUTH"
	CodeForbidden   = "FORBIDDEN"
	CodeNotFound    = "NOT_FOUND"
	CodeConflict    = "CONFLICT"
	CodeMaintenance = "MAINTENANCE"
	CodeRateLimit   = "RATE_LIMIT"
	CodeInternal    = "INTERNAL"
)

// Envelope é o corpo de toda resposta JSON: data preenchido no sucesso, error na falha.
type Envelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody descreve a falha. Details traz mensagens por campo do formulário
// (assunto, cpf, gravacao_id...) quando a causa é validação.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON escreve envelope de sucesso.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, Envelope{Data: data})
}

// WriteError escreve envelope de erro.
func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	writeEnvelope(w, status, Envelope{Error: &ErrorBody{Code: code, Message: message, Details: details}})
}

func writeEnvelope(w http.ResponseWriter, status int, body Envelope) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
