package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSessionNotFound indica sessão inexistente ou expirada.
	ErrSessionNotFound = errors.New("sessão de gravação não encontrada")
	// ErrSessionFinished indica sessão já finalizada.
	ErrSessionFinished = errors.New("sessão de gravação já finalizada")
	// ErrRecordingTooLarge indica gravação acima do limite.
	ErrRecordingTooLarge = errors.New("gravação excede o tamanho máximo")
)

// Sessions mantém gravações enviadas em partes pelo navegador.
// Cada sessão tem seu PushDevice e seu Recorder; ao finalizar, o arquivo fica
// guardado até ser retirado com Take ou expirar.
type Sessions struct {
	ttl      time.Duration
	maxBytes int64
	now      func() time.Time

	mu    sync.Mutex
	items map[string]*session
}

type session struct {
	kind     Kind
	device   *PushDevice
	recorder *Recorder
	size     int64
	touched  time.Time
	file     *File
	// finishing fecha quando o Finish em curso termina; finishErr guarda sua falha.
	finishing chan struct{}
	finishErr error
}

// NewSessions cria o registro. maxBytes <= 0 desativa o limite.
func NewSessions(ttl time.Duration, maxBytes int64) *Sessions {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Sessions{ttl: ttl, maxBytes: maxBytes, now: time.Now, items: make(map[string]*session)}
}

// Begin abre uma nova sessão e devolve seu identificador.
func (s *Sessions) Begin(kind Kind) (string, error) {
	device := NewPushDevice(32)
	rec := NewRecorder(device, nil)
	if err := rec.Start(context.Background(), kind); err != nil {
		return "", err
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.items[id] = &session{kind: kind, device: device, recorder: rec, touched: s.now()}
	s.mu.Unlock()
	return id, nil
}

// Append acrescenta um bloco à sessão. O tamanho reservado é devolvido se o
// bloco não chegar ao dispositivo.
func (s *Sessions) Append(ctx context.Context, id string, chunk []byte) error {
	n := int64(len(chunk))

	s.mu.Lock()
	sess, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	if sess.file != nil || sess.finishing != nil {
		s.mu.Unlock()
		return ErrSessionFinished
	}
	if s.maxBytes > 0 && sess.size+n > s.maxBytes {
		s.mu.Unlock()
		return ErrRecordingTooLarge
	}
	sess.size += n
	sess.touched = s.now()
	device := sess.device
	s.mu.Unlock()

	if err := device.Push(ctx, chunk); err != nil {
		s.mu.Lock()
		sess.size -= n
		s.mu.Unlock()
		return err
	}
	return nil
}

// Finish encerra a captura e guarda o arquivo para envio posterior.
// Chamadas concorrentes esperam a primeira e devolvem o mesmo resultado.
func (s *Sessions) Finish(ctx context.Context, id string) (File, error) {
	s.mu.Lock()
	sess, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return File{}, ErrSessionNotFound
	}
	for sess.finishing != nil && sess.file == nil && sess.finishErr == nil {
		wait := sess.finishing
		s.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return File{}, ctx.Err()
		}
		s.mu.Lock()
	}
	if sess.file != nil {
		f := *sess.file
		s.mu.Unlock()
		return f, nil
	}
	if sess.finishErr != nil {
		err := sess.finishErr
		s.mu.Unlock()
		return File{}, err
	}
	done := make(chan struct{})
	sess.finishing = done
	s.mu.Unlock()

	sess.device.End()
	select {
	case <-sess.recorder.Done():
	case <-ctx.Done():
		// outra chamada pode retomar a finalização
		s.mu.Lock()
		sess.finishing = nil
		close(done)
		s.mu.Unlock()
		return File{}, ctx.Err()
	}

	f, err := sess.recorder.Stop()
	if err != nil {
		if errors.Is(err, ErrNotRecording) {
			err = ErrSessionFinished
		}
		s.mu.Lock()
		sess.finishErr = err
		close(done)
		s.mu.Unlock()
		s.drop(id)
		return File{}, err
	}

	s.mu.Lock()
	sess.file = &f
	sess.touched = s.now()
	close(done)
	s.mu.Unlock()
	return f, nil
}

// Take retira o arquivo de uma sessão finalizada.
func (s *Sessions) Take(id string) (File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if !ok || sess.file == nil {
		return File{}, false
	}
	delete(s.items, id)
	return *sess.file, true
}

// Cancel descarta a sessão e libera o dispositivo.
func (s *Sessions) Cancel(id string) bool {
	return s.drop(id)
}

// Sweep remove sessões paradas há mais que o TTL.
func (s *Sessions) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*session
	for id, sess := range s.items {
		if sess.touched.Before(cutoff) {
			expired = append(expired, sess)
			delete(s.items, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.recorder.Close()
	}
	return len(expired)
}

// Run executa Sweep periodicamente até o contexto terminar.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	logger := log.With().Str("component", "gravacoes").Logger()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Info().Int("expiradas", n).Msg("sessões de gravação removidas")
			}
		}
	}
}

// Close descarta todas as sessões.
func (s *Sessions) Close() {
	s.mu.Lock()
	items := s.items
	s.items = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range items {
		sess.recorder.Close()
	}
}

// Len informa quantas sessões existem.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Sessions) drop(id string) bool {
	s.mu.Lock()
	sess, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()
	if ok {
		sess.recorder.Close()
	}
	return ok
}
