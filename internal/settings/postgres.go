package settings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("configuração do portal não encontrada")

// Saved é a configuração persistida junto com quem a alterou por último.
type Saved struct {
	AppSettings
	UpdatedAt time.Time
	UpdatedBy string
}

// Repository persiste a configuração numa linha única da tabela portal_configuracoes.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Load(ctx context.Context) (*Saved, error) {
	const query = `
        SELECT nome_portal, permite_anonimo, manutencao, prazo_dias, cor_primaria, updated_at, updated_by
        FROM portal_configuracoes
        WHERE singleton = TRUE
        LIMIT 1
    `

	var cfg Saved
	if err := r.pool.QueryRow(ctx, query).Scan(
		&cfg.PortalName,
		&cfg.AllowAnonymous,
		&cfg.MaintenanceMode,
		&cfg.SLADays,
		&cfg.PrimaryColor,
		&cfg.UpdatedAt,
		&cfg.UpdatedBy,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *Repository) Save(ctx context.Context, cfg AppSettings, updatedBy string) error {
	const query = `
        INSERT INTO portal_configuracoes (singleton, nome_portal, permite_anonimo, manutencao, prazo_dias, cor_primaria, updated_by)
        VALUES (TRUE, $1, $2, $3, $4, $5, $6)
        ON CONFLICT (singleton)
        DO UPDATE SET
            nome_portal = EXCLUDED.nome_portal,
            permite_anonimo = EXCLUDED.permite_anonimo,
            manutencao = EXCLUDED.manutencao,
            prazo_dias = EXCLUDED.prazo_dias,
            cor_primaria = EXCLUDED.cor_primaria,
            updated_by = EXCLUDED.updated_by,
            updated_at = NOW()
    `

	_, err := r.pool.Exec(ctx, query,
		strings.TrimSpace(cfg.PortalName),
		cfg.AllowAnonymous,
		cfg.MaintenanceMode,
		cfg.SLADays,
		strings.TrimSpace(cfg.PrimaryColor),
		strings.TrimSpace(updatedBy),
	)
	return err
}

// Restore devolve a configuração salva ou, se ainda não houver, a informada.
func (r *Repository) Restore(ctx context.Context, fallback AppSettings) (AppSettings, error) {
	saved, err := r.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fallback, nil
		}
		return fallback, err
	}
	return saved.AppSettings, nil
}
