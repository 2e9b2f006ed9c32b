package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/participadf/ouvidoria/internal/capture"
	"github.com/participadf/ouvidoria/internal/form"
)

func writeEnvelope(w http.ResponseWriter, status int, data any, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"data": data, "error": nil}
	if code != "" {
		body["data"] = nil
		body["error"] = map[string]any{"code": code, "message": msg, "details": map[string]string{"assunto": "campo obrigatório"}}
	}
	_ = json.NewEncoder(w).Encode(body)
}

func TestSubmitSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/nova-manifestacao", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Elogio", r.FormValue(form.FieldTipo))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		file, hdr, err := r.FormFile(form.FieldArquivo)
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "gravacao_audio.webm", hdr.Filename)

		writeEnvelope(w, http.StatusCreated, map[string]any{
			"manifestacao": map[string]any{"protocolo": "OUV-2026-ABCDEF", "status": "EM ANÁLISE", "assunto": "UBS"},
		}, "", "")
	}))
	defer srv.Close()

	c := New(srv.URL+"/", nil).WithToken("tok")
	r, err := c.Submit(context.Background(), form.Payload{
		Fields: []form.Field{{Name: form.FieldTipo, Value: "Elogio"}},
		File:   &capture.File{Name: "gravacao_audio.webm", ContentType: "audio/webm", Data: []byte("x")},
	})
	require.NoError(t, err)
	assert.Equal(t, "OUV-2026-ABCDEF", r.Protocolo)
	assert.Equal(t, "EM ANÁLISE", r.Status)
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusBadRequest, nil, "VALIDATION", "campos inválidos")
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Submit(context.Background(), form.Payload{})
	require.Error(t, err)
	assert.True(t, IsCode(err, "VALIDATION"))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "campo obrigatório", apiErr.Details["assunto"])
}

func TestNonEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Lookup(context.Background(), "OUV-2026-ABCDEF")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Empty(t, apiErr.Code)
}

func TestLookupAndLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/manifestacoes/OUV-2026-ABCDEF":
			writeEnvelope(w, http.StatusOK, map[string]any{"protocolo": "OUV-2026-ABCDEF", "status": "CONCLUÍDO", "resposta": "Resolvido"}, "", "")
		case "/auth/login":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ad", body["identificador"])
			writeEnvelope(w, http.StatusOK, map[string]any{"access_token": "jwt"}, "", "")
		default:
			writeEnvelope(w, http.StatusNotFound, nil, "NOT_FOUND", "não encontrado")
		}
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	st, err := c.Lookup(context.Background(), " OUV-2026-ABCDEF ")
	require.NoError(t, err)
	assert.Equal(t, "CONCLUÍDO", st.Status)
	require.NotNil(t, st.Resposta)
	assert.Equal(t, "Resolvido", *st.Resposta)

	tok, err := c.Login(context.Background(), "ad", "kl")
	require.NoError(t, err)
	assert.Equal(t, "jwt", tok)

	_, err = c.Portal(context.Background())
	assert.True(t, IsCode(err, "NOT_FOUND"))
}
