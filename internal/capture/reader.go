package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"
	"sync/atomic"
)

const defaultChunkSize = 32 * 1024

// ReaderDevice captura de um io.Reader (arquivo, stdin, pipe de ffmpeg).
// Parar qualquer trilha fecha o reader, assim como o fim do contexto de Next;
// o ReadCloser devolvido precisa desbloquear Read quando fechado.
type ReaderDevice struct {
	OpenFunc  func(ctx context.Context, c Constraints) (io.ReadCloser, error)
	ChunkSize int
}

// Open chama OpenFunc; erros de permissão viram ErrPermissionDenied.
func (d ReaderDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if d.OpenFunc == nil {
		return nil, errors.New("capture: dispositivo sem origem")
	}
	rc, err := d.OpenFunc(ctx, c)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return nil, err
	}

	size := d.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	s := &readerStream{rc: rc, size: size}
	if c.Audio {
		s.tracks = append(s.tracks, &readerTrack{kind: "audio", stream: s})
	}
	if c.Video {
		s.tracks = append(s.tracks, &readerTrack{kind: "video", stream: s})
	}
	return s, nil
}

type readerStream struct {
	rc     io.ReadCloser
	size   int
	tracks []Track
	close  sync.Once
}

func (s *readerStream) Tracks() []Track { return s.tracks }

func (s *readerStream) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, s.closeSource)
	defer stop()

	buf := make([]byte, s.size)
	n, err := s.rc.Read(buf)
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return buf[:n], err
}

func (s *readerStream) closeSource() {
	s.close.Do(func() { _ = s.rc.Close() })
}

type readerTrack struct {
	kind   string
	stream *readerStream
	ended  atomic.Bool
}

func (t *readerTrack) Kind() string { return t.kind }

func (t *readerTrack) Stop() {
	t.ended.Store(true)
	t.stream.closeSource()
}

func (t *readerTrack) Ended() bool { return t.ended.Load() }
