// Package postgres is a PostgreSQL backend for companies and proposals built
// on a pgx connection pool. Proposal saves run in a single transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgres")

const schema = `
CREATE TABLE IF NOT EXISTS empresas (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL UNIQUE,
	nome         TEXT NOT NULL DEFAULT '',
	cnpj         TEXT NOT NULL DEFAULT '',
	telefone     TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	endereco     TEXT NOT NULL DEFAULT '',
	cor_primaria TEXT NOT NULL DEFAULT '',
	logo_url     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS propostas (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	titulo            TEXT NOT NULL DEFAULT '',
	cliente_nome      TEXT NOT NULL DEFAULT '',
	cliente_email     TEXT NOT NULL DEFAULT '',
	cliente_telefone  TEXT NOT NULL DEFAULT '',
	observacoes       TEXT NOT NULL DEFAULT '',
	validade_dias     DOUBLE PRECISION NOT NULL DEFAULT 30,
	status            TEXT NOT NULL DEFAULT 'pendente',
	valor_total       DOUBLE PRECISION NOT NULL DEFAULT 0,
	numero_sequencial BIGINT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, numero_sequencial)
);
CREATE INDEX IF NOT EXISTS propostas_user_created_idx ON propostas (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS itens_proposta (
	id          BIGSERIAL PRIMARY KEY,
	proposta_id TEXT NOT NULL REFERENCES propostas(id) ON DELETE CASCADE,
	posicao     INTEGER NOT NULL,
	descricao   TEXT NOT NULL DEFAULT '',
	quantidade  DOUBLE PRECISION NOT NULL DEFAULT 0,
	valor_unit  DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS itens_proposta_proposta_idx ON itens_proposta (proposta_id, posicao);

CREATE TABLE IF NOT EXISTS usuarios (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store implements port.CompanyStore, port.ProposalStore and port.UserStore.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Open connects to dsn, verifies the connection and applies the schema.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 3 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("postgres store initialized")
	return &Store{pool: pool, logger: logger}, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ============================================================
// Empresas
// ============================================================

const companyColumns = `id, user_id, nome, cnpj, telefone, email, endereco, cor_primaria, logo_url`

func scanCompany(row pgx.Row) (*domain.Company, error) {
	var c domain.Company
	err := row.Scan(&c.ID, &c.UserID, &c.Nome, &c.CNPJ, &c.Telefone, &c.Email, &c.Endereco, &c.CorPrimaria, &c.LogoURL)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetCompany(ctx context.Context, userID string) (*domain.Company, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetCompany")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	c, err := scanCompany(s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM empresas WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "empresa", ID: userID}
	}
	if err != nil {
		return nil, wrap("get empresa", err)
	}
	return c, nil
}

func (s *Store) UpsertCompany(ctx context.Context, c *domain.Company) (*domain.Company, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpsertCompany")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", c.UserID))

	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	saved, err := scanCompany(s.pool.QueryRow(ctx, `
		INSERT INTO empresas (`+companyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			nome = EXCLUDED.nome,
			cnpj = EXCLUDED.cnpj,
			telefone = EXCLUDED.telefone,
			email = EXCLUDED.email,
			endereco = EXCLUDED.endereco,
			cor_primaria = EXCLUDED.cor_primaria,
			logo_url = EXCLUDED.logo_url
		RETURNING `+companyColumns,
		id, c.UserID, c.Nome, c.CNPJ, c.Telefone, c.Email, c.Endereco, c.CorPrimaria, c.LogoURL,
	))
	if err != nil {
		return nil, wrap("upsert empresa", err)
	}
	return saved, nil
}

// ============================================================
// Propostas
// ============================================================

const proposalColumns = `id, user_id, titulo, cliente_nome, cliente_email, cliente_telefone, observacoes,
	validade_dias, status, valor_total, numero_sequencial, created_at`

func scanProposal(row pgx.Row) (*domain.Proposal, error) {
	var (
		p        domain.Proposal
		validade float64
		total    float64
		status   string
		numero   *int64
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Titulo, &p.ClienteNome, &p.ClienteEmail, &p.ClienteTelefone,
		&p.Observacoes, &validade, &status, &total, &numero, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.ValidadeDias = domain.Number(validade)
	p.ValorTotal = domain.Number(total)
	p.NumeroSequencial = numero
	p.Status = domain.Status(status)
	if !p.Status.Valid() {
		p.Status = domain.StatusPendente
	}
	return &p, nil
}

func (s *Store) ListProposals(ctx context.Context, userID string, filter domain.ListFilter) ([]domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListProposals")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := s.pool.Query(ctx, `
		SELECT `+proposalColumns+`
		FROM propostas
		WHERE user_id = $1
		  AND ($2 = '' OR strpos(lower(titulo), lower($2)) > 0 OR strpos(lower(cliente_nome), lower($2)) > 0)
		ORDER BY created_at DESC, numero_sequencial DESC
		LIMIT NULLIF($3, 0)`,
		userID, filter.Search, filter.Limit,
	)
	if err != nil {
		return nil, wrap("list propostas", err)
	}
	defer rows.Close()

	out := []domain.Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, wrap("scan proposta", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list propostas", err)
	}
	return out, nil
}

func (s *Store) GetProposal(ctx context.Context, userID, id string) (*domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetProposal")
	defer span.End()
	span.SetAttributes(attribute.String("proposal.id", id))

	p, err := scanProposal(s.pool.QueryRow(ctx,
		`SELECT `+proposalColumns+` FROM propostas WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "proposta", ID: id}
	}
	if err != nil {
		return nil, wrap("get proposta", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT descricao, quantidade, valor_unit FROM itens_proposta WHERE proposta_id = $1 ORDER BY posicao, id`, id)
	if err != nil {
		return nil, wrap("list itens", err)
	}
	defer rows.Close()

	p.Itens = []domain.LineItem{}
	for rows.Next() {
		var (
			it         domain.LineItem
			qty, price float64
		)
		if err := rows.Scan(&it.Descricao, &qty, &price); err != nil {
			return nil, wrap("scan item", err)
		}
		it.Quantidade, it.ValorUnit = domain.Number(qty), domain.Number(price)
		p.Itens = append(p.Itens, it)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list itens", err)
	}
	return p, nil
}

// SaveProposal upserts the row and replaces the items in one transaction.
// New proposals get the next per-user numero_sequencial under an advisory lock.
func (s *Store) SaveProposal(ctx context.Context, p *domain.Proposal) (*domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "Postgres.SaveProposal")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, wrap("begin transaction", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var saved *domain.Proposal
	if p.ID == "" {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, p.UserID); err != nil {
			return nil, wrap("lock sequence", err)
		}
		saved, err = scanProposal(tx.QueryRow(ctx, `
			INSERT INTO propostas (id, user_id, titulo, cliente_nome, cliente_email, cliente_telefone,
				observacoes, validade_dias, status, valor_total, numero_sequencial)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
				(SELECT COALESCE(MAX(numero_sequencial), 0) + 1 FROM propostas WHERE user_id = $2))
			RETURNING `+proposalColumns,
			uuid.NewString(), p.UserID, p.Titulo, p.ClienteNome, p.ClienteEmail, p.ClienteTelefone,
			p.Observacoes, p.ValidadeDias.Float64(), string(p.Status), p.ValorTotal.Float64(),
		))
	} else {
		saved, err = scanProposal(tx.QueryRow(ctx, `
			UPDATE propostas SET
				titulo = $3, cliente_nome = $4, cliente_email = $5, cliente_telefone = $6,
				observacoes = $7, validade_dias = $8, status = $9, valor_total = $10
			WHERE id = $1 AND user_id = $2
			RETURNING `+proposalColumns,
			p.ID, p.UserID, p.Titulo, p.ClienteNome, p.ClienteEmail, p.ClienteTelefone,
			p.Observacoes, p.ValidadeDias.Float64(), string(p.Status), p.ValorTotal.Float64(),
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.ErrNotFound{Resource: "proposta", ID: p.ID}
		}
	}
	if err != nil {
		return nil, wrap("save proposta", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM itens_proposta WHERE proposta_id = $1`, saved.ID); err != nil {
		return nil, wrap("delete itens", err)
	}
	if len(p.Itens) > 0 {
		rows := make([][]any, 0, len(p.Itens))
		for i, it := range p.Itens {
			rows = append(rows, []any{saved.ID, i, it.Descricao, it.Quantidade.Float64(), it.ValorUnit.Float64()})
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"itens_proposta"},
			[]string{"proposta_id", "posicao", "descricao", "quantidade", "valor_unit"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return nil, wrap("insert itens", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrap("commit", err)
	}

	saved.Itens = append([]domain.LineItem{}, p.Itens...)
	s.logger.Info("postgres: proposal saved",
		zap.String("proposal_id", saved.ID),
		zap.Int("items", len(saved.Itens)),
	)
	return saved, nil
}

func (s *Store) DeleteProposal(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteProposal")
	defer span.End()
	span.SetAttributes(attribute.String("proposal.id", id))

	tag, err := s.pool.Exec(ctx, `DELETE FROM propostas WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return wrap("delete proposta", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "proposta", ID: id}
	}
	return nil
}

func (s *Store) UpdateProposalStatus(ctx context.Context, userID, id string, status domain.Status) (*domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateProposalStatus")
	defer span.End()
	span.SetAttributes(attribute.String("proposal.id", id), attribute.String("status", string(status)))

	p, err := scanProposal(s.pool.QueryRow(ctx,
		`UPDATE propostas SET status = $3 WHERE id = $1 AND user_id = $2 RETURNING `+proposalColumns,
		id, userID, string(status)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "proposta", ID: id}
	}
	if err != nil {
		return nil, wrap("update status", err)
	}
	return p, nil
}

// ============================================================
// Usuarios
// ============================================================

func (s *Store) CreateUser(ctx context.Context, u *domain.UserAccount) (*domain.UserAccount, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateUser")
	defer span.End()

	id := u.ID
	if id == "" {
		id = uuid.NewString()
	}
	var out domain.UserAccount
	err := s.pool.QueryRow(ctx, `
		INSERT INTO usuarios (id, email, password_hash) VALUES ($1, lower(btrim($2)), $3)
		RETURNING id, email, password_hash, created_at`,
		id, u.Email, u.PasswordHash,
	).Scan(&out.ID, &out.Email, &out.PasswordHash, &out.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, &domain.ErrConflict{Message: "E-mail já cadastrado"}
		}
		return nil, wrap("create usuario", err)
	}
	return &out, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetUserByEmail")
	defer span.End()

	var out domain.UserAccount
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM usuarios WHERE email = lower(btrim($1))`, email,
	).Scan(&out.ID, &out.Email, &out.PasswordHash, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "usuario", ID: email}
	}
	if err != nil {
		return nil, wrap("get usuario", err)
	}
	return &out, nil
}

func wrap(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &domain.ErrConflict{Message: "registro já existe"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: "postgres/" + op}
	}
	return &domain.ErrExternalService{Service: "postgres", Err: fmt.Errorf("%s: %w", op, err)}
}
