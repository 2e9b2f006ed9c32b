// Package client consome a API pública do portal.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/participadf/ouvidoria/internal/form"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
	"github.com/participadf/ouvidoria/internal/settings"
)

// APIError é a falha devolvida no envelope da API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: %s (%d): %s", e.Code, e.Status, e.Message)
}

// IsCode informa se err é um APIError com o código indicado.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

// Client fala com o servidor em baseURL.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New cria o cliente; httpClient nil usa timeout de 30s.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// WithToken devolve uma cópia que envia o token de acesso.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

var _ form.Submitter = (*Client)(nil)

// Submit envia a manifestação em multipart para /api/nova-manifestacao.
func (c *Client) Submit(ctx context.Context, p form.Payload) (*ouvidoria.Receipt, error) {
	var body bytes.Buffer
	contentType, err := p.WriteMultipart(&body)
	if err != nil {
		return nil, fmt.Errorf("montar multipart: %w", err)
	}

	var out struct {
		Manifestacao ouvidoria.Receipt `json:"manifestacao"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/nova-manifestacao", contentType, &body, &out); err != nil {
		return nil, err
	}
	return &out.Manifestacao, nil
}

// Lookup consulta o andamento de um protocolo.
func (c *Client) Lookup(ctx context.Context, protocol string) (*ouvidoria.PublicStatus, error) {
	var out ouvidoria.PublicStatus
	path := "/api/manifestacoes/" + url.PathEscape(strings.TrimSpace(protocol))
	if err := c.do(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Portal lê a configuração pública do portal.
func (c *Client) Portal(ctx context.Context) (*settings.AppSettings, error) {
	var out settings.AppSettings
	if err := c.do(ctx, http.MethodGet, "/api/portal", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login autentica e devolve o token de acesso.
func (c *Client) Login(ctx context.Context, identifier, password string) (string, error) {
	raw, err := json.Marshal(map[string]string{"identificador": identifier, "senha": password})
	if err != nil {
		return "", err
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "application/json", bytes.NewReader(raw), &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&env)

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("resposta inválida: %w", decodeErr)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("resposta inválida: %w", err)
	}
	return nil
}
