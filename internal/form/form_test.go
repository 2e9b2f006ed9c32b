package form

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/participadf/ouvidoria/internal/capture"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []Payload
	err      error
}

func (s *fakeSubmitter) Submit(ctx context.Context, p Payload) (*ouvidoria.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, p)
	if s.err != nil {
		return nil, s.err
	}
	assunto, _ := p.Get(FieldAssunto)
	return &ouvidoria.Receipt{
		Protocolo: "OUV-2026-QWE123",
		Assunto:   assunto,
		Status:    string(ouvidoria.StatusEmAnalise),
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

type memHistory struct {
	saved []ouvidoria.Manifestation
}

func (h *memHistory) SaveManifestation(m ouvidoria.Manifestation) ouvidoria.Manifestation {
	h.saved = append(h.saved, m)
	return m
}

// trackedDevice conta as trilhas paradas de um PushDevice.
type trackedDevice struct {
	inner *capture.PushDevice
	err   error
	stops atomic.Int32
}

type trackedTrack struct {
	capture.Track
	stops *atomic.Int32
}

func (t trackedTrack) Stop() {
	t.stops.Add(1)
	t.Track.Stop()
}

type trackedStream struct {
	capture.Stream
	tracks []capture.Track
}

func (s trackedStream) Tracks() []capture.Track { return s.tracks }

func (d *trackedDevice) Open(ctx context.Context, c capture.Constraints) (capture.Stream, error) {
	if d.err != nil {
		return nil, d.err
	}
	st, err := d.inner.Open(ctx, c)
	if err != nil {
		return nil, err
	}
	out := trackedStream{Stream: st}
	for _, tr := range st.Tracks() {
		out.tracks = append(out.tracks, trackedTrack{Track: tr, stops: &d.stops})
	}
	return out, nil
}

func fillIdentified(t *testing.T, f *Form) {
	t.Helper()
	require.NoError(t, f.SetField(FieldAssunto, "Iluminação"))
	require.NoError(t, f.SetField(FieldConteudo, "Poste apagado há uma semana"))
	require.NoError(t, f.SetField(FieldNome, "Ana Souza"))
	require.NoError(t, f.SetField(FieldEmail, "ana@exemplo.com"))
	require.NoError(t, f.SetField(FieldCPF, "111.111.111-11"))
}

func TestNewDefaults(t *testing.T) {
	f := New(&fakeSubmitter{}, Options{})
	assert.Equal(t, StateEditing, f.State())
	assert.Equal(t, ouvidoria.ChannelText, f.Channel())
	assert.Equal(t, string(ouvidoria.TipoReclamacao), f.Field(FieldTipo))
	assert.Equal(t, []string{FieldTipo, FieldAssunto, FieldConteudo, FieldNome, FieldEmail}, f.Required())

	citizen := &ouvidoria.User{Username: "111.111.111-11", CPF: "111.111.111-11", Name: "Ana", Role: ouvidoria.RoleCitizen}
	f = New(&fakeSubmitter{}, Options{User: citizen, Tipo: ouvidoria.TipoElogio})
	assert.Equal(t, "Ana", f.Field(FieldNome))
	assert.Equal(t, "111.111.111-11", f.Field(FieldCPF))
	assert.Equal(t, string(ouvidoria.TipoElogio), f.Field(FieldTipo))
}

func TestValidate(t *testing.T) {
	f := New(&fakeSubmitter{}, Options{})
	errs := f.Validate()
	assert.Contains(t, errs, FieldAssunto)
	assert.Contains(t, errs, FieldConteudo)
	assert.Contains(t, errs, FieldNome)
	assert.Contains(t, errs, FieldEmail)

	require.NoError(t, f.SetField(FieldEmail, "sem-arroba"))
	require.NoError(t, f.SetField(FieldData, "32/13/2026"))
	errs = f.Validate()
	assert.Contains(t, errs, FieldEmail)
	assert.Contains(t, errs, FieldData)

	require.NoError(t, f.SetAnonymous(true))
	errs = f.Validate()
	assert.NotContains(t, errs, FieldNome)
	assert.NotContains(t, errs, FieldEmail)

	assert.ErrorIs(t, f.SetField("senha", "x"), ErrUnknownField)
}

func TestAnonymousPayloadOmitsPersonalData(t *testing.T) {
	sub := &fakeSubmitter{}
	hist := &memHistory{}
	f := New(sub, Options{History: hist})
	fillIdentified(t, f)
	require.NoError(t, f.SetField(FieldTelefone, "61 99999-0000"))
	require.NoError(t, f.SetAnonymous(true))

	receipt, err := f.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "OUV-2026-QWE123", receipt.Protocolo)
	assert.Equal(t, StateSuccess, f.State())

	require.Len(t, sub.payloads, 1)
	p := sub.payloads[0]
	for _, name := range []string{FieldNome, FieldEmail, FieldTelefone, FieldCPF} {
		_, ok := p.Get(name)
		assert.False(t, ok, name)
	}
	anon, _ := p.Get(FieldAnonimo)
	assert.Equal(t, "true", anon)

	require.Len(t, hist.saved, 1)
	assert.Empty(t, hist.saved[0].OwnerCPF)
	assert.True(t, hist.saved[0].IsAnonymous)

	assert.ErrorIs(t, f.SetField(FieldAssunto, "outro"), ErrAlreadySubmitted)
}

func TestSubjectDefaultsToGeral(t *testing.T) {
	f := New(&fakeSubmitter{}, Options{})
	p := f.Payload()
	v, _ := p.Get(FieldAssunto)
	assert.Equal(t, "Geral", v)
}

func TestSubmitFailureKeepsFields(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("conexão recusada")}
	f := New(sub, Options{})
	fillIdentified(t, f)

	_, err := f.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateEditing, f.State())
	assert.Equal(t, SubmitErrorMessage, f.Error())
	assert.Equal(t, "Iluminação", f.Field(FieldAssunto))

	sub.err = nil
	_, err = f.Submit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.Error())
}

func TestSubmitValidationError(t *testing.T) {
	sub := &fakeSubmitter{}
	f := New(sub, Options{})

	_, err := f.Submit(context.Background())
	var verr *ouvidoria.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, FieldAssunto)
	assert.Empty(t, sub.payloads)
	assert.Contains(t, f.FieldErrors(), FieldAssunto)
}

func TestAttachFile(t *testing.T) {
	f := New(&fakeSubmitter{}, Options{})
	assert.ErrorIs(t, f.AttachFile("foto.png", "image/png", []byte{1}), ErrWrongChannel)

	require.NoError(t, f.SelectChannel(ouvidoria.ChannelUpload))
	assert.NotContains(t, f.Required(), FieldConteudo)

	require.NoError(t, f.AttachFile("foto.png", "image/png", []byte{1, 2}))
	assert.Equal(t, "Arquivo foto.png anexado com sucesso.", f.Notice())
	a := f.Attachment()
	require.NotNil(t, a)
	assert.Empty(t, a.PreviewURL)

	require.NoError(t, f.SelectChannel(ouvidoria.ChannelAudio))
	require.NoError(t, f.AttachFile("voz.mp3", "audio/mpeg", []byte{3}))
	assert.True(t, strings.HasPrefix(f.Attachment().PreviewURL, "blob:"))

	f.RemoveAttachment()
	assert.Nil(t, f.Attachment())
	assert.Contains(t, f.Validate(), FieldArquivo)
}

func TestAudioRecordingBecomesAttachment(t *testing.T) {
	dev := &trackedDevice{inner: capture.NewPushDevice(4)}
	previews := capture.NewPreviews()
	rec := capture.NewRecorder(dev, previews)
	sub := &fakeSubmitter{}
	f := New(sub, Options{
		Channel:  ouvidoria.ChannelAudio,
		Recorder: rec,
		Previews: previews,
	})
	defer f.Close()
	fillIdentified(t, f)

	ctx := context.Background()
	require.NoError(t, f.StartRecording(ctx))
	assert.True(t, f.Recording())
	assert.Equal(t, "Gravação de áudio iniciada.", f.Notice())
	assert.Contains(t, f.Validate(), FieldArquivo)

	require.NoError(t, dev.inner.Push(ctx, []byte("ogg")))
	dev.inner.End()
	<-rec.Done()

	require.NoError(t, f.StopRecording())
	assert.False(t, f.Recording())
	assert.Equal(t, "Gravação de áudio finalizada e anexada.", f.Notice())
	assert.Equal(t, int32(1), dev.stops.Load())

	a := f.Attachment()
	require.NotNil(t, a)
	assert.Equal(t, "gravacao_audio.webm", a.Name)
	assert.Equal(t, "audio/webm", a.ContentType)
	assert.Equal(t, "ogg", string(a.Data))

	_, err := f.Submit(ctx)
	require.NoError(t, err)
	require.Len(t, sub.payloads, 1)
	require.NotNil(t, sub.payloads[0].File)
	assert.Equal(t, "ogg", string(sub.payloads[0].File.Data))
}

func TestRecordingPermissionNotice(t *testing.T) {
	f := New(&fakeSubmitter{}, Options{
		Channel:  ouvidoria.ChannelVideo,
		Recorder: capture.NewRecorder(&trackedDevice{err: capture.ErrPermissionDenied}, nil),
	})
	err := f.StartRecording(context.Background())
	assert.ErrorIs(t, err, capture.ErrPermissionDenied)
	assert.Equal(t, "Não foi possível acessar a câmera. Verifique as permissões.", f.Notice())
	assert.False(t, f.Recording())

	f = New(&fakeSubmitter{}, Options{
		Channel:  ouvidoria.ChannelAudio,
		Recorder: capture.NewRecorder(&trackedDevice{err: capture.ErrPermissionDenied}, nil),
	})
	require.Error(t, f.StartRecording(context.Background()))
	assert.Equal(t, "Não foi possível acessar o microfone.", f.Notice())
}

func TestChannelSwitchCancelsRecording(t *testing.T) {
	dev := &trackedDevice{inner: capture.NewPushDevice(1)}
	f := New(&fakeSubmitter{}, Options{
		Channel:  ouvidoria.ChannelVideo,
		Recorder: capture.NewRecorder(dev, nil),
	})

	require.NoError(t, f.StartRecording(context.Background()))
	require.NoError(t, f.SelectChannel(ouvidoria.ChannelText))
	assert.False(t, f.Recording())
	assert.Equal(t, int32(2), dev.stops.Load())
	assert.Nil(t, f.Attachment())

	assert.ErrorIs(t, f.StartRecording(context.Background()), ErrWrongChannel)
	assert.ErrorIs(t, f.StopRecording(), capture.ErrNotRecording)
}

func TestWriteMultipart(t *testing.T) {
	p := Payload{
		Fields: []Field{{FieldTipo, "Elogio"}, {FieldAssunto, "UBS"}},
		File:   &capture.File{Name: "a.txt", Data: []byte("oi")},
	}
	var sb strings.Builder
	ct, err := p.WriteMultipart(&sb)
	require.NoError(t, err)

	_, params, err := mime.ParseMediaType(ct)
	require.NoError(t, err)
	mr := multipart.NewReader(strings.NewReader(sb.String()), params["boundary"])

	var names []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, part.FormName())
		if part.FormName() == FieldArquivo {
			assert.Equal(t, "a.txt", part.FileName())
			assert.Equal(t, "application/octet-stream", part.Header.Get("Content-Type"))
		}
	}
	assert.Equal(t, []string{FieldTipo, FieldAssunto, FieldArquivo}, names)
}

func TestCloseReleasesActiveRecording(t *testing.T) {
	defer goleak.VerifyNone(t)

	dev := &trackedDevice{inner: capture.NewPushDevice(4)}
	previews := capture.NewPreviews()
	rec := capture.NewRecorder(dev, previews)
	f := New(&fakeSubmitter{}, Options{
		Channel:  ouvidoria.ChannelVideo,
		Recorder: rec,
		Previews: previews,
	})

	require.NoError(t, f.AttachFile("antes.mp4", "video/mp4", []byte("mp4")))
	require.Equal(t, 1, previews.Len())

	ctx := context.Background()
	require.NoError(t, f.StartRecording(ctx))
	require.NoError(t, dev.inner.Push(ctx, []byte("quadro")))
	require.True(t, f.Recording())

	f.Close()

	// vídeo abre duas trilhas; cada uma para uma única vez
	assert.Equal(t, int32(2), dev.stops.Load())
	assert.False(t, f.Recording())
	assert.False(t, rec.Recording())
	assert.Equal(t, 0, previews.Len())
	assert.ErrorIs(t, f.StartRecording(ctx), ErrClosed)

	f.Close()
	assert.Equal(t, int32(2), dev.stops.Load())
}

// slowDevice segura Open como um pedido de permissão sem resposta.
type slowDevice struct {
	*trackedDevice
	opening chan struct{}
	release chan struct{}
}

func (d *slowDevice) Open(ctx context.Context, c capture.Constraints) (capture.Stream, error) {
	close(d.opening)
	<-d.release
	return d.trackedDevice.Open(ctx, c)
}

func TestCloseDuringSlowDeviceOpen(t *testing.T) {
	defer goleak.VerifyNone(t)

	dev := &slowDevice{
		trackedDevice: &trackedDevice{inner: capture.NewPushDevice(1)},
		opening:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	f := New(&fakeSubmitter{}, Options{
		Channel:  ouvidoria.ChannelAudio,
		Recorder: capture.NewRecorder(dev, nil),
	})

	errc := make(chan error, 1)
	go func() { errc <- f.StartRecording(context.Background()) }()
	<-dev.opening

	assert.Equal(t, StateEditing, f.State())
	assert.Empty(t, f.Notice())
	f.Close()

	close(dev.release)
	assert.ErrorIs(t, <-errc, ErrClosed)
	assert.False(t, f.Recording())
	assert.Equal(t, int32(1), dev.stops.Load())
}
