package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/participadf/ouvidoria/internal/capture"
	"github.com/participadf/ouvidoria/internal/form"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
)

var enviarOpts struct {
	tipo    string
	anonimo bool
	campos  map[string]*string
	anexo   string
	gravar  string
	origem  string
	usuario string
	senha   string
}

var enviarCmd = &cobra.Command{
	Use:   "enviar",
	Short: "Envia uma nova manifestação",
	Long: `Preenche o formulário de manifestação e envia para a API.

O relato pode ser texto (--texto), um arquivo (--anexo) ou uma gravação lida de
um arquivo ou da entrada padrão (--gravar audio --origem -).`,
	Example: `  participa enviar --tipo Reclamação --assunto "Iluminação" --texto "Poste apagado" --anonimo
  ffmpeg -f pulse -i default -f webm - | participa enviar --tipo Denúncia --gravar audio --origem -`,
	RunE: runEnviar,
}

func init() {
	f := enviarCmd.Flags()
	f.StringVar(&enviarOpts.tipo, "tipo", string(ouvidoria.TipoReclamacao), "Denúncia, Reclamação, Sugestão, Elogio ou Solicitação")
	f.BoolVar(&enviarOpts.anonimo, "anonimo", false, "envia sem dados pessoais")
	f.StringVar(&enviarOpts.anexo, "anexo", "", "arquivo a anexar")
	f.StringVar(&enviarOpts.gravar, "gravar", "", "grava audio ou video a partir de --origem")
	f.StringVar(&enviarOpts.origem, "origem", "-", "arquivo da gravação; - lê da entrada padrão")
	f.StringVar(&enviarOpts.usuario, "usuario", "", "CPF ou usuário para enviar logado")
	f.StringVar(&enviarOpts.senha, "senha", "", "senha do usuário")

	enviarOpts.campos = map[string]*string{
		form.FieldAssunto:  f.String("assunto", "", "assunto"),
		form.FieldConteudo: f.String("texto", "", "relato em texto"),
		form.FieldNome:     f.String("nome", "", "nome completo"),
		form.FieldEmail:    f.String("email", "", "e-mail para contato"),
		form.FieldTelefone: f.String("telefone", "", "telefone"),
		form.FieldCPF:      f.String("cpf", "", "CPF"),
		form.FieldLocal:    f.String("local", "", "local da ocorrência"),
		form.FieldData:     f.String("data", "", "data da ocorrência (AAAA-MM-DD)"),
	}
}

func runEnviar(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	tipo, ok := ouvidoria.ParseTipo(enviarOpts.tipo)
	if !ok {
		return fmt.Errorf("tipo %q inválido", enviarOpts.tipo)
	}

	c := newClient()
	if enviarOpts.usuario != "" {
		token, err := c.Login(ctx, enviarOpts.usuario, enviarOpts.senha)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		c = c.WithToken(token)
	}

	channel := ouvidoria.ChannelText
	var recorder *capture.Recorder
	switch {
	case enviarOpts.gravar != "":
		kind, ok := capture.ParseKind(enviarOpts.gravar)
		if !ok {
			return errors.New("--gravar deve ser audio ou video")
		}
		channel = ouvidoria.ChannelAudio
		if kind == capture.KindVideo {
			channel = ouvidoria.ChannelVideo
		}
		recorder = capture.NewRecorder(sourceDevice(cmd, enviarOpts.origem), nil)
	case enviarOpts.anexo != "":
		channel = ouvidoria.ChannelUpload
	}

	f := form.New(c, form.Options{Tipo: tipo, Channel: channel, Recorder: recorder})
	defer f.Close()

	if err := f.SetAnonymous(enviarOpts.anonimo); err != nil {
		return err
	}
	for name, value := range enviarOpts.campos {
		if *value == "" {
			continue
		}
		if err := f.SetField(name, *value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if enviarOpts.anexo != "" {
		data, err := os.ReadFile(enviarOpts.anexo)
		if err != nil {
			return fmt.Errorf("anexo: %w", err)
		}
		if err := f.AttachFile(filepath.Base(enviarOpts.anexo), contentTypeOf(enviarOpts.anexo, data), data); err != nil {
			return fmt.Errorf("anexo: %w", err)
		}
	}

	if recorder != nil {
		if err := f.StartRecording(ctx); err != nil {
			if notice := f.Notice(); notice != "" {
				return errors.New(notice)
			}
			return err
		}
		// a gravação termina quando a origem chega ao fim
		select {
		case <-recorder.Done():
		case <-ctx.Done():
		}
		if err := ctx.Err(); err != nil {
			_ = f.CancelRecording()
			return fmt.Errorf("gravação interrompida: %w", err)
		}
		if err := f.StopRecording(); err != nil {
			return err
		}
		log.Debug().Msg(f.Notice())
	}

	receipt, err := f.Submit(ctx)
	if err != nil {
		var invalid *ouvidoria.ValidationError
		if errors.As(err, &invalid) {
			printFieldErrors(cmd.ErrOrStderr(), invalid.Fields)
			return errors.New("formulário incompleto")
		}
		log.Debug().Err(err).Msg("falha no envio")
		return errors.New(f.Error())
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, f.Notice())
	fmt.Fprintf(out, "Protocolo: %s\n", receipt.Protocolo)
	fmt.Fprintf(out, "Status:    %s\n", receipt.Status)
	return nil
}

// sourceDevice lê a gravação de um arquivo ou da entrada padrão.
func sourceDevice(cmd *cobra.Command, origem string) capture.Device {
	return capture.ReaderDevice{
		OpenFunc: func(ctx context.Context, c capture.Constraints) (io.ReadCloser, error) {
			if origem == "-" {
				return closableInput(cmd.InOrStdin()), nil
			}
			return os.Open(origem)
		},
	}
}

// closableInput copia r para um pipe. Fechar o pipe libera quem lê mesmo com a
// entrada parada; a cópia pendente em r termina junto com o processo.
func closableInput(r io.Reader) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		_, err := io.Copy(pw, r)
		pw.CloseWithError(err)
	}()
	return pr
}

func contentTypeOf(path string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

func printFieldErrors(w io.Writer, fields map[string]string) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %s\n", name, fields[name])
	}
}
