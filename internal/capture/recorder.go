package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// Recorder controla uma gravação por vez sobre um Device.
type Recorder struct {
	device   Device
	previews *Previews

	mu       sync.Mutex
	active   *recording
	starting bool
}

type recording struct {
	kind    Kind
	stream  Stream
	cancel  context.CancelFunc
	done    chan struct{}
	release sync.Once
	halted  atomic.Bool

	mu  sync.Mutex
	buf bytes.Buffer
	err error
}

// NewRecorder cria o gravador. previews pode ser nil.
func NewRecorder(device Device, previews *Previews) *Recorder {
	return &Recorder{device: device, previews: previews}
}

// Start abre o dispositivo e começa a coletar blocos em segundo plano.
// O lock não é mantido durante Open; Cancel chamado nesse intervalo não encontra gravação.
func (r *Recorder) Start(ctx context.Context, kind Kind) error {
	r.mu.Lock()
	if r.active != nil || r.starting {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.starting = true
	r.mu.Unlock()

	stream, err := r.device.Open(ctx, kind.Constraints())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.starting = false

	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("abrir dispositivo: %w", err)
	}

	recCtx, cancel := context.WithCancel(ctx)
	rec := &recording{
		kind:   kind,
		stream: stream,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.active = rec

	go rec.collect(recCtx)
	return nil
}

// Recording informa se há gravação em andamento.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Done fecha quando o stream atual termina sozinho ou é parado.
// Sem gravação ativa devolve um canal já fechado.
func (r *Recorder) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return r.active.done
}

// Stop encerra a gravação e devolve o arquivo com o que foi capturado.
func (r *Recorder) Stop() (File, error) {
	rec, err := r.detach()
	if err != nil {
		return File{}, err
	}
	rec.shutdown()

	rec.mu.Lock()
	data := append([]byte(nil), rec.buf.Bytes()...)
	streamErr := rec.err
	rec.mu.Unlock()

	if streamErr != nil {
		return File{}, fmt.Errorf("gravação: %w", streamErr)
	}
	if len(data) == 0 {
		return File{}, ErrEmptyRecording
	}

	f := File{Name: rec.kind.FileName(), ContentType: rec.kind.MIMEType(), Data: data}
	if r.previews != nil {
		f.PreviewURL = r.previews.Create(f)
	}
	return f, nil
}

// Cancel descarta a gravação em andamento.
func (r *Recorder) Cancel() error {
	rec, err := r.detach()
	if err != nil {
		return err
	}
	rec.shutdown()
	return nil
}

// Close libera o dispositivo, se houver gravação ativa.
func (r *Recorder) Close() {
	_ = r.Cancel()
}

func (r *Recorder) detach() (*recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil, ErrNotRecording
	}
	rec := r.active
	r.active = nil
	return rec, nil
}

// shutdown encerra as trilhas, interrompe a coleta e espera a goroutine.
func (rec *recording) shutdown() {
	rec.halted.Store(true)
	rec.releaseTracks()
	rec.cancel()
	<-rec.done
}

func (rec *recording) releaseTracks() {
	rec.release.Do(func() { StopTracks(rec.stream) })
}

func (rec *recording) collect(ctx context.Context) {
	defer close(rec.done)
	defer rec.releaseTracks()

	for {
		chunk, err := rec.stream.Next(ctx)
		if len(chunk) > 0 {
			rec.mu.Lock()
			rec.buf.Write(chunk)
			rec.mu.Unlock()
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) && !rec.halted.Load() && ctx.Err() == nil {
			rec.mu.Lock()
			rec.err = err
			rec.mu.Unlock()
		}
		return
	}
}
