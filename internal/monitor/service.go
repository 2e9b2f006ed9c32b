// Package monitor acompanha o prazo de resposta das manifestações.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
	"github.com/participadf/ouvidoria/internal/settings"
)

// Source lista as manifestações acompanhadas.
type Source interface {
	Manifestations(ctx context.Context) ([]ouvidoria.Manifestation, error)
}

// SettingsReader fornece o prazo vigente.
type SettingsReader interface {
	Get() settings.AppSettings
}

// Overdue é uma manifestação aberta além do prazo.
type Overdue struct {
	Protocol string           `json:"protocolo"`
	Tipo     ouvidoria.Tipo   `json:"tipo"`
	Subject  string           `json:"assunto"`
	Status   ouvidoria.Status `json:"status"`
	Date     time.Time        `json:"data"`
	Deadline time.Time        `json:"prazo"`
	DaysLate int              `json:"dias_atraso"`
}

// Service executa verificações periódicas e avisa sobre atrasos novos.
type Service struct {
	source   Source
	settings SettingsReader
	cfg      config.MonitoringConfig
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	alerted map[string]struct{}

	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService cria o monitor. notifier pode ser nil; nesse caso os atrasos só vão para o log.
func NewService(source Source, st SettingsReader, cfg config.MonitoringConfig, logger zerolog.Logger, notifier Notifier) *Service {
	return &Service{
		source:   source,
		settings: st,
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		alerted:  make(map[string]struct{}),
	}
}

// Start inicia loop periódico. Safe para chamar múltiplas vezes.
func (s *Service) Start(parent context.Context) {
	if !s.cfg.Enabled {
		return
	}
	s.once.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		s.cancel = cancel
		s.done = make(chan struct{})
		go s.runLoop(ctx)
	})
}

// Stop encerra loop periódico e espera a rodada em curso.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Service) runLoop(ctx context.Context) {
	defer close(s.done)

	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("monitor: loop iniciado")

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error().Err(err).Msg("monitor: primeira execução falhou")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("monitor: loop encerrado")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("monitor: execução periódica falhou")
			}
		}
	}
}

// Overdue lista as manifestações em aberto cujo prazo já passou, das mais atrasadas para as mais recentes.
func (s *Service) Overdue(ctx context.Context) ([]Overdue, error) {
	items, err := s.source.Manifestations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar manifestações: %w", err)
	}

	days := s.settings.Get().SLADays
	if days <= 0 {
		return []Overdue{}, nil
	}
	now := s.now()

	out := make([]Overdue, 0)
	for _, m := range items {
		if !m.Status.Open() || m.Date.IsZero() {
			continue
		}
		deadline := m.Date.AddDate(0, 0, days)
		if !now.After(deadline) {
			continue
		}
		out = append(out, Overdue{
			Protocol: m.Protocol,
			Tipo:     m.Type,
			Subject:  m.Subject,
			Status:   m.Status,
			Date:     m.Date,
			Deadline: deadline,
			DaysLate: int(now.Sub(deadline).Hours() / 24),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

// RunOnce verifica os prazos e avisa uma única vez por protocolo.
func (s *Service) RunOnce(ctx context.Context) error {
	overdue, err := s.Overdue(ctx)
	if err != nil {
		return err
	}

	current := make(map[string]struct{}, len(overdue))
	for _, o := range overdue {
		current[o.Protocol] = struct{}{}
	}

	s.mu.Lock()
	// protocolos que saíram do atraso podem voltar a ser avisados
	for p := range s.alerted {
		if _, ok := current[p]; !ok {
			delete(s.alerted, p)
		}
	}
	pending := make([]Overdue, 0, len(overdue))
	for _, o := range overdue {
		if _, ok := s.alerted[o.Protocol]; !ok {
			pending = append(pending, o)
		}
	}
	s.mu.Unlock()

	for _, o := range pending {
		if err := s.alert(ctx, o); err != nil {
			s.logger.Error().Err(err).Str("protocolo", o.Protocol).Msg("monitor: falha ao enviar alerta")
			continue
		}
		s.mu.Lock()
		s.alerted[o.Protocol] = struct{}{}
		s.mu.Unlock()
	}

	if len(pending) > 0 {
		s.logger.Info().Int("atrasadas", len(overdue)).Int("novas", len(pending)).Msg("monitor: prazos verificados")
	}
	return nil
}

func (s *Service) alert(ctx context.Context, o Overdue) error {
	severity := "warning"
	if o.DaysLate >= s.settings.Get().SLADays {
		severity = "critical"
	}

	s.logger.Warn().
		Str("protocolo", o.Protocol).
		Int("dias_atraso", o.DaysLate).
		Msg("monitor: manifestação fora do prazo")

	if s.notifier == nil {
		return nil
	}

	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	requestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return s.notifier.Notify(requestCtx, AlertMessage{
		Title:    fmt.Sprintf("Manifestação %s fora do prazo", o.Protocol),
		Text:     fmt.Sprintf("%s \"%s\" está %s desde %s (%d dia(s) de atraso).", o.Tipo, o.Subject, o.Status, o.Deadline.Format("02/01/2006"), o.DaysLate),
		Severity: severity,
	})
}
