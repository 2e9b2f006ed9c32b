package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// PushDevice recebe blocos empurrados por outra parte do sistema, como o
// upload de trechos do MediaRecorder do navegador. Abre um único stream.
type PushDevice struct {
	chunks  chan []byte
	ended   chan struct{}
	stopped chan struct{}

	endOnce  sync.Once
	stopOnce sync.Once
	opened   atomic.Bool
}

// NewPushDevice cria o dispositivo com buffer de blocos pendentes.
func NewPushDevice(buffer int) *PushDevice {
	if buffer <= 0 {
		buffer = 16
	}
	return &PushDevice{
		chunks:  make(chan []byte, buffer),
		ended:   make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Open devolve o stream do dispositivo; só pode ser chamado uma vez.
func (d *PushDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if !d.opened.CompareAndSwap(false, true) {
		return nil, errors.New("capture: dispositivo já aberto")
	}
	s := &pushStream{device: d}
	if c.Audio {
		s.tracks = append(s.tracks, &pushTrack{kind: "audio", device: d})
	}
	if c.Video {
		s.tracks = append(s.tracks, &pushTrack{kind: "video", device: d})
	}
	return s, nil
}

// Push entrega um bloco ao stream.
func (d *PushDevice) Push(ctx context.Context, chunk []byte) error {
	select {
	case <-d.ended:
		return ErrDeviceClosed
	case <-d.stopped:
		return ErrDeviceClosed
	default:
	}

	data := append([]byte(nil), chunk...)
	select {
	case d.chunks <- data:
		return nil
	case <-d.ended:
		return ErrDeviceClosed
	case <-d.stopped:
		return ErrDeviceClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// End sinaliza que não haverá mais blocos; o stream termina após drenar o buffer.
func (d *PushDevice) End() {
	d.endOnce.Do(func() { close(d.ended) })
}

func (d *PushDevice) stop() {
	d.stopOnce.Do(func() { close(d.stopped) })
}

type pushStream struct {
	device *PushDevice
	tracks []Track
}

func (s *pushStream) Tracks() []Track { return s.tracks }

func (s *pushStream) Next(ctx context.Context) ([]byte, error) {
	d := s.device
	select {
	case chunk := <-d.chunks:
		return chunk, nil
	default:
	}

	select {
	case chunk := <-d.chunks:
		return chunk, nil
	case <-d.ended:
		select {
		case chunk := <-d.chunks:
			return chunk, nil
		default:
			return nil, io.EOF
		}
	case <-d.stopped:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type pushTrack struct {
	kind   string
	device *PushDevice
	ended  atomic.Bool
}

func (t *pushTrack) Kind() string { return t.kind }

func (t *pushTrack) Stop() {
	t.ended.Store(true)
	t.device.stop()
}

func (t *pushTrack) Ended() bool { return t.ended.Load() }
