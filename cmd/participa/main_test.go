package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/participadf/ouvidoria/internal/auth"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConsultar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/api/manifestacoes/OUV-2026-ABC123" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"data": nil, "error": map[string]string{"code": "NOT_FOUND", "message": "protocolo não encontrado"}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"protocolo": "OUV-2026-ABC123", "tipo_manifestacao": "Elogio", "status": "CONCLUÍDO",
			"created_at": "2026-03-01T10:00:00Z", "resposta": "Obrigado",
		}})
	}))
	defer srv.Close()

	out, err := execute(t, "", "consultar", "--api", srv.URL, "OUV-2026-ABC123")
	require.NoError(t, err)
	assert.Contains(t, out, "CONCLUÍDO")
	assert.Contains(t, out, "Obrigado")

	_, err = execute(t, "", "consultar", "--api", srv.URL, "OUV-2026-XXXXXX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "não encontrado")
}

func TestEnviarGravacaoDaEntradaPadrao(t *testing.T) {
	var got struct {
		tipo, anonimo, arquivo, contentType string
		tamanho                              int
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		got.tipo = r.FormValue("tipo_manifestacao")
		got.anonimo = r.FormValue("is_anonimo")
		if file, hdr, err := r.FormFile("arquivo"); err == nil {
			got.arquivo = hdr.Filename
			got.contentType = hdr.Header.Get("Content-Type")
			var buf bytes.Buffer
			_, _ = buf.ReadFrom(file)
			got.tamanho = buf.Len()
			file.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"manifestacao": map[string]any{"protocolo": "OUV-2026-QWE123", "status": "EM ANÁLISE"},
		}})
	}))
	defer srv.Close()

	out, err := execute(t, "bytes-da-gravacao",
		"enviar", "--api", srv.URL, "--tipo", "denuncia", "--anonimo",
		"--assunto", "Obra irregular", "--gravar", "audio", "--origem", "-")
	require.NoError(t, err, out)
	assert.Contains(t, out, "OUV-2026-QWE123")
	assert.Equal(t, "Denúncia", got.tipo)
	assert.Equal(t, "true", got.anonimo)
	assert.Equal(t, "gravacao_audio.webm", got.arquivo)
	assert.Equal(t, "audio/webm", got.contentType)
	assert.Equal(t, len("bytes-da-gravacao"), got.tamanho)
}

func TestHashpass(t *testing.T) {
	out, err := execute(t, "segredo\n", "hashpass")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.True(t, auth.Verify("segredo", hash))
}

func TestEnviarRespeitaTimeoutComEntradaParada(t *testing.T) {
	defer func() { timeout = time.Minute }()

	// a entrada nunca recebe bytes nem fecha até o fim do teste
	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(pr)
	rootCmd.SetArgs([]string{
		"enviar", "--api", "http://127.0.0.1:1", "--timeout", "200ms",
		"--tipo", "denuncia", "--anonimo", "--assunto", "Barulho",
		"--gravar", "audio", "--origem", "-",
	})

	done := make(chan error, 1)
	go func() { done <- rootCmd.Execute() }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(3 * time.Second):
		t.Fatal("enviar continuou bloqueado depois do --timeout")
	}
}
