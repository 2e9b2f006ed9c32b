package ouvidoria

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/participadf/ouvidoria/internal/db"
)

// PGRepository guarda manifestações no Postgres.
// Protocolos repetidos são permitidos; leituras usam a primeira ocorrência (menor seq).
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository cria o repositório sobre um pool já aberto.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

const manifestationColumns = `protocolo, tipo, assunto, conteudo, cpf_dono, nome, email, telefone,
	criado_em, status, local_ocorrencia, data_ocorrencia, anonimo, tipo_midia,
	anexo_nome, anexo_tipo, anexo_url, resposta, respondido_em, respondido_por, analise_ia`

func (r *PGRepository) SaveManifestation(ctx context.Context, m Manifestation) (Manifestation, error) {
	m.StripIdentity()

	analysis, err := encodeAnalysis(m.Analysis)
	if err != nil {
		return Manifestation{}, err
	}

	var attName, attType, attURL *string
	if m.Attachment != nil {
		attName, attType, attURL = optional(m.Attachment.Name), optional(m.Attachment.Type), optional(m.Attachment.URL)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO manifestacoes (`+manifestationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`,
		m.Protocol, string(m.Type), m.Subject, m.Content,
		optional(m.OwnerCPF), optional(m.Name), optional(m.Email), optional(m.Phone),
		m.Date, string(m.Status), optional(m.Local), optional(m.OccurrenceDate), m.IsAnonymous,
		optional(m.MediaKind), attName, attType, attURL,
		optional(m.Response), m.ResponseTime, optional(m.ResponderName), analysis,
	)
	if err != nil {
		return Manifestation{}, fmt.Errorf("inserir manifestação: %w", err)
	}
	return m, nil
}

func (r *PGRepository) Manifestations(ctx context.Context) ([]Manifestation, error) {
	return r.query(ctx, `SELECT `+manifestationColumns+` FROM manifestacoes ORDER BY seq`)
}

func (r *PGRepository) ManifestationsByUser(ctx context.Context, cpf string) ([]Manifestation, error) {
	return r.query(ctx, `SELECT `+manifestationColumns+` FROM manifestacoes WHERE cpf_dono = $1 ORDER BY seq`, cpf)
}

func (r *PGRepository) FindManifestationByProtocol(ctx context.Context, protocol string) (Manifestation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+manifestationColumns+` FROM manifestacoes
		WHERE protocolo = $1 ORDER BY seq LIMIT 1
	`, protocol)

	m, err := scanManifestation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Manifestation{}, ErrNotFound
	}
	if err != nil {
		return Manifestation{}, fmt.Errorf("buscar manifestação: %w", err)
	}
	return m, nil
}

func (r *PGRepository) UpdateManifestation(ctx context.Context, protocol string, patch ManifestationPatch) (bool, error) {
	found := false
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var seq int64
		row := tx.QueryRow(ctx, `
			SELECT seq, `+manifestationColumns+` FROM manifestacoes
			WHERE protocolo = $1 ORDER BY seq LIMIT 1 FOR UPDATE
		`, protocol)

		m, err := scanManifestation(row, &seq)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		patch.Apply(&m)

		var attName, attType, attURL *string
		if m.Attachment != nil {
			attName, attType, attURL = optional(m.Attachment.Name), optional(m.Attachment.Type), optional(m.Attachment.URL)
		}
		_, err = tx.Exec(ctx, `
			UPDATE manifestacoes
			SET status = $2, resposta = $3, respondido_em = $4, respondido_por = $5,
			    local_ocorrencia = $6, anexo_nome = $7, anexo_tipo = $8, anexo_url = $9
			WHERE seq = $1
		`, seq, string(m.Status), optional(m.Response), m.ResponseTime, optional(m.ResponderName),
			optional(m.Local), attName, attType, attURL)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("atualizar manifestação: %w", err)
	}
	return found, nil
}

func (r *PGRepository) query(ctx context.Context, sql string, args ...any) ([]Manifestation, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listar manifestações: %w", err)
	}
	defer rows.Close()

	var out []Manifestation
	for rows.Next() {
		m, err := scanManifestation(rows)
		if err != nil {
			return nil, fmt.Errorf("ler manifestação: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// scanManifestation lê as colunas de manifestationColumns, precedidas de lead quando informado.
func scanManifestation(row pgx.Row, lead ...any) (Manifestation, error) {
	var (
		m                            Manifestation
		tipo, status                 string
		cpf, nome, email, telefone   *string
		local, occurrence, mediaKind *string
		attName, attType, attURL     *string
		response, responder          *string
		respondedAt                  *time.Time
		analysis                     []byte
	)

	dest := append(lead, &m.Protocol, &tipo, &m.Subject, &m.Content, &cpf, &nome, &email, &telefone,
		&m.Date, &status, &local, &occurrence, &m.IsAnonymous, &mediaKind,
		&attName, &attType, &attURL, &response, &respondedAt, &responder, &analysis)
	if err := row.Scan(dest...); err != nil {
		return Manifestation{}, err
	}

	m.Type = Tipo(tipo)
	m.Status = Status(status)
	m.OwnerCPF = deref(cpf)
	m.Name = deref(nome)
	m.Email = deref(email)
	m.Phone = deref(telefone)
	m.Local = deref(local)
	m.OccurrenceDate = deref(occurrence)
	m.MediaKind = deref(mediaKind)
	m.Response = deref(response)
	m.ResponderName = deref(responder)
	m.ResponseTime = respondedAt
	if attURL != nil {
		m.Attachment = &Attachment{Name: deref(attName), Type: deref(attType), URL: *attURL}
	}
	if len(analysis) > 0 {
		m.Analysis = &Analysis{}
		if err := json.Unmarshal(analysis, m.Analysis); err != nil {
			return Manifestation{}, fmt.Errorf("analise_ia: %w", err)
		}
	}
	return m, nil
}

func encodeAnalysis(a *Analysis) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("analise_ia: %w", err)
	}
	return raw, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
