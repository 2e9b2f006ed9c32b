// Package capture grava áudio e vídeo a partir de dispositivos de mídia.
//
// Um Device entrega um Stream com uma ou mais Tracks. O Recorder coleta os
// blocos do stream em memória e, ao parar, devolve um File pronto para ser
// anexado a uma manifestação. Toda saída (parada, cancelamento, erro ou
// fechamento) encerra as tracks exatamente uma vez.
package capture

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrPermissionDenied indica que o acesso ao dispositivo foi negado.
	ErrPermissionDenied = errors.New("acesso ao dispositivo negado")
	// ErrNotRecording indica que não há gravação em andamento.
	ErrNotRecording = errors.New("nenhuma gravação em andamento")
	// ErrAlreadyRecording indica que já existe gravação em andamento.
	ErrAlreadyRecording = errors.New("gravação já em andamento")
	// ErrEmptyRecording indica que nenhum dado foi capturado.
	ErrEmptyRecording = errors.New("gravação vazia")
	// ErrDeviceClosed indica dispositivo encerrado.
	ErrDeviceClosed = errors.New("dispositivo encerrado")
)

// Kind é o tipo de gravação.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// ParseKind aceita "audio" ou "video" em qualquer caixa.
func ParseKind(value string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(value))); k {
	case KindAudio, KindVideo:
		return k, true
	}
	return "", false
}

// MIMEType do arquivo gerado.
func (k Kind) MIMEType() string {
	if k == KindVideo {
		return "video/webm"
	}
	return "audio/webm"
}

// FileName do arquivo gerado.
func (k Kind) FileName() string {
	if k == KindVideo {
		return "gravacao_video.webm"
	}
	return "gravacao_audio.webm"
}

// Constraints pedidas ao dispositivo; vídeo sempre leva áudio junto.
func (k Kind) Constraints() Constraints {
	return Constraints{Audio: true, Video: k == KindVideo}
}

// Constraints descreve quais trilhas abrir.
type Constraints struct {
	Audio bool
	Video bool
}

// Track é uma trilha de mídia aberta.
type Track interface {
	Kind() string
	Stop()
	Ended() bool
}

// Stream entrega os blocos capturados. Next devolve io.EOF ao fim.
type Stream interface {
	Tracks() []Track
	Next(ctx context.Context) ([]byte, error)
}

// Device abre streams de captura.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// File é uma gravação finalizada.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	PreviewURL  string
}

// StopTracks encerra todas as trilhas do stream.
func StopTracks(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
