package form

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"

	"github.com/participadf/ouvidoria/internal/capture"
)

// Nomes dos campos do formulário multipart.
const (
	FieldTipo     = "tipo_manifestacao"
	FieldAssunto  = "assunto"
	FieldConteudo = "conteudo_texto"
	FieldAnonimo  = "is_anonimo"
	FieldNome     = "nome"
	FieldEmail    = "email"
	FieldTelefone = "telefone"
	FieldCPF      = "cpf"
	FieldLocal    = "local_ocorrencia"
	FieldData     = "data_ocorrencia"
	FieldArquivo  = "arquivo"
)

// Field é um par nome/valor na ordem de envio.
type Field struct {
	Name  string
	Value string
}

// Payload é o conteúdo pronto para envio.
type Payload struct {
	Fields []Field
	File   *capture.File
}

// Get devolve o valor do campo, se presente.
func (p Payload) Get(name string) (string, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// WriteMultipart codifica o payload e devolve o Content-Type com boundary.
func (p Payload) WriteMultipart(w io.Writer) (string, error) {
	mw := multipart.NewWriter(w)
	for _, f := range p.Fields {
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			return "", err
		}
	}

	if p.File != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldArquivo, p.File.Name))
		h.Set("Content-Type", contentTypeOrDefault(p.File.ContentType))
		part, err := mw.CreatePart(h)
		if err != nil {
			return "", err
		}
		if _, err := part.Write(p.File.Data); err != nil {
			return "", err
		}
	}

	if err := mw.Close(); err != nil {
		return "", err
	}
	return mw.FormDataContentType(), nil
}

func contentTypeOrDefault(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
