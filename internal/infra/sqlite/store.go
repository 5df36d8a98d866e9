// Package sqlite is an embedded SQLite backend (gorm + pure-Go driver) used
// for local development, guest demos and tests.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var tracer = otel.Tracer("sqlite")

type companyModel struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"not null;uniqueIndex"`
	Nome        string `gorm:"not null;default:''"`
	CNPJ        string `gorm:"column:cnpj;not null;default:''"`
	Telefone    string `gorm:"not null;default:''"`
	Email       string `gorm:"not null;default:''"`
	Endereco    string `gorm:"not null;default:''"`
	CorPrimaria string `gorm:"not null;default:''"`
	LogoURL     string `gorm:"column:logo_url;not null;default:''"`
}

func (companyModel) TableName() string { return "empresas" }

type proposalModel struct {
	ID               string `gorm:"primaryKey"`
	UserID           string `gorm:"not null;index:idx_propostas_user_created,priority:1"`
	Titulo           string `gorm:"not null;default:''"`
	ClienteNome      string `gorm:"not null;default:''"`
	ClienteEmail     string `gorm:"not null;default:''"`
	ClienteTelefone  string `gorm:"not null;default:''"`
	Observacoes      string `gorm:"not null;default:''"`
	ValidadeDias     float64
	Status           string `gorm:"not null;default:'pendente'"`
	ValorTotal       float64
	NumeroSequencial *int64
	CreatedAt        time.Time   `gorm:"not null;index:idx_propostas_user_created,priority:2"`
	Itens            []itemModel `gorm:"foreignKey:PropostaID"`
}

func (proposalModel) TableName() string { return "propostas" }

type itemModel struct {
	ID         uint   `gorm:"primaryKey"`
	PropostaID string `gorm:"not null;index"`
	Posicao    int    `gorm:"not null"`
	Descricao  string `gorm:"not null;default:''"`
	Quantidade float64
	ValorUnit  float64
}

func (itemModel) TableName() string { return "itens_proposta" }

type userModel struct {
	ID           string    `gorm:"primaryKey"`
	Email        string    `gorm:"not null;uniqueIndex"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (userModel) TableName() string { return "usuarios" }

// Store implements port.CompanyStore, port.ProposalStore and port.UserStore.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for a throwaway database.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := db.AutoMigrate(&companyModel{}, &proposalModel{}, &itemModel{}, &userModel{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	logger.Info("sqlite store initialized", zap.String("path", path))
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ============================================================
// Empresas
// ============================================================

func (s *Store) GetCompany(ctx context.Context, userID string) (*domain.Company, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetCompany")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var m companyModel
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.ErrNotFound{Resource: "empresa", ID: userID}
	}
	if err != nil {
		return nil, wrap("get empresa", err)
	}
	return m.toDomain(), nil
}

func (s *Store) UpsertCompany(ctx context.Context, c *domain.Company) (*domain.Company, error) {
	ctx, span := tracer.Start(ctx, "SQLite.UpsertCompany")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", c.UserID))

	m := companyModel{
		ID:          c.ID,
		UserID:      c.UserID,
		Nome:        c.Nome,
		CNPJ:        c.CNPJ,
		Telefone:    c.Telefone,
		Email:       c.Email,
		Endereco:    c.Endereco,
		CorPrimaria: c.CorPrimaria,
		LogoURL:     c.LogoURL,
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"nome", "cnpj", "telefone", "email", "endereco", "cor_primaria", "logo_url"}),
	}).Create(&m).Error
	if err != nil {
		return nil, wrap("upsert empresa", err)
	}
	return s.GetCompany(ctx, c.UserID)
}

func (m *companyModel) toDomain() *domain.Company {
	return &domain.Company{
		ID:          m.ID,
		UserID:      m.UserID,
		Nome:        m.Nome,
		CNPJ:        m.CNPJ,
		Telefone:    m.Telefone,
		Email:       m.Email,
		Endereco:    m.Endereco,
		CorPrimaria: m.CorPrimaria,
		LogoURL:     m.LogoURL,
	}
}

// ============================================================
// Propostas
// ============================================================

func (m *proposalModel) toDomain(withItems bool) domain.Proposal {
	status := domain.Status(m.Status)
	if !status.Valid() {
		status = domain.StatusPendente
	}
	p := domain.Proposal{
		ID:               m.ID,
		UserID:           m.UserID,
		Titulo:           m.Titulo,
		ClienteNome:      m.ClienteNome,
		ClienteEmail:     m.ClienteEmail,
		ClienteTelefone:  m.ClienteTelefone,
		Observacoes:      m.Observacoes,
		ValidadeDias:     domain.Number(m.ValidadeDias),
		Status:           status,
		ValorTotal:       domain.Number(m.ValorTotal),
		NumeroSequencial: m.NumeroSequencial,
		CreatedAt:        m.CreatedAt,
	}
	if withItems {
		p.Itens = make([]domain.LineItem, 0, len(m.Itens))
		for _, it := range m.Itens {
			p.Itens = append(p.Itens, domain.LineItem{
				Descricao:  it.Descricao,
				Quantidade: domain.Number(it.Quantidade),
				ValorUnit:  domain.Number(it.ValorUnit),
			})
		}
	}
	return p
}

// ListProposals returns the user's proposals newest first. SQLite's lower()
// only folds ASCII, so the search is matched in Go.
func (s *Store) ListProposals(ctx context.Context, userID string, filter domain.ListFilter) ([]domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListProposals")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var rows []proposalModel
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("numero_sequencial DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrap("list propostas", err)
	}

	out := make([]domain.Proposal, 0, len(rows))
	for i := range rows {
		p := rows[i].toDomain(false)
		if !filter.Matches(p.Summary()) {
			continue
		}
		out = append(out, p)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetProposal(ctx context.Context, userID, id string) (*domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetProposal")
	defer span.End()
	span.SetAttributes(attribute.String("proposal.id", id))

	var m proposalModel
	err := s.db.WithContext(ctx).
		Preload("Itens", func(db *gorm.DB) *gorm.DB { return db.Order("posicao ASC, id ASC") }).
		Where("id = ? AND user_id = ?", id, userID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.ErrNotFound{Resource: "proposta", ID: id}
	}
	if err != nil {
		return nil, wrap("get proposta", err)
	}
	p := m.toDomain(true)
	return &p, nil
}

// SaveProposal upserts the row and replaces the items in one transaction.
func (s *Store) SaveProposal(ctx context.Context, p *domain.Proposal) (*domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "SQLite.SaveProposal")
	defer span.End()

	var saved proposalModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		isNew := p.ID == ""
		if isNew {
			var next int64
			if err := tx.Model(&proposalModel{}).
				Where("user_id = ?", p.UserID).
				Select("COALESCE(MAX(numero_sequencial), 0) + 1").
				Scan(&next).Error; err != nil {
				return err
			}
			saved = proposalModel{
				ID:               uuid.NewString(),
				UserID:           p.UserID,
				NumeroSequencial: &next,
				CreatedAt:        s.now().UTC(),
			}
		} else {
			err := tx.Where("id = ? AND user_id = ?", p.ID, p.UserID).First(&saved).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &domain.ErrNotFound{Resource: "proposta", ID: p.ID}
			}
			if err != nil {
				return err
			}
		}

		saved.Titulo = p.Titulo
		saved.ClienteNome = p.ClienteNome
		saved.ClienteEmail = p.ClienteEmail
		saved.ClienteTelefone = p.ClienteTelefone
		saved.Observacoes = p.Observacoes
		saved.ValidadeDias = p.ValidadeDias.Float64()
		saved.Status = string(p.Status)
		saved.ValorTotal = p.ValorTotal.Float64()
		saved.Itens = nil

		write := tx.Omit(clause.Associations)
		if isNew {
			write = write.Create(&saved)
		} else {
			write = write.Save(&saved)
		}
		if write.Error != nil {
			return write.Error
		}
		if err := tx.Where("proposta_id = ?", saved.ID).Delete(&itemModel{}).Error; err != nil {
			return err
		}
		if len(p.Itens) == 0 {
			return nil
		}
		items := make([]itemModel, 0, len(p.Itens))
		for i, it := range p.Itens {
			items = append(items, itemModel{
				PropostaID: saved.ID,
				Posicao:    i,
				Descricao:  it.Descricao,
				Quantidade: it.Quantidade.Float64(),
				ValorUnit:  it.ValorUnit.Float64(),
			})
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, nf
		}
		return nil, wrap("save proposta", err)
	}

	out := saved.toDomain(false)
	out.Itens = append([]domain.LineItem{}, p.Itens...)
	s.logger.Info("sqlite: proposal saved",
		zap.String("proposal_id", out.ID),
		zap.Int("items", len(out.Itens)),
	)
	return &out, nil
}

func (s *Store) DeleteProposal(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "SQLite.DeleteProposal")
	defer span.End()
	span.SetAttributes(attribute.String("proposal.id", id))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&proposalModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &domain.ErrNotFound{Resource: "proposta", ID: id}
		}
		return tx.Where("proposta_id = ?", id).Delete(&itemModel{}).Error
	})
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		return nf
	}
	if err != nil {
		return wrap("delete proposta", err)
	}
	return nil
}

func (s *Store) UpdateProposalStatus(ctx context.Context, userID, id string, status domain.Status) (*domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "SQLite.UpdateProposalStatus")
	defer span.End()
	span.SetAttributes(attribute.String("proposal.id", id), attribute.String("status", string(status)))

	res := s.db.WithContext(ctx).Model(&proposalModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("status", string(status))
	if res.Error != nil {
		return nil, wrap("update status", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &domain.ErrNotFound{Resource: "proposta", ID: id}
	}

	var m proposalModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, wrap("reload proposta", err)
	}
	p := m.toDomain(false)
	return &p, nil
}

// ============================================================
// Usuarios
// ============================================================

func (s *Store) CreateUser(ctx context.Context, u *domain.UserAccount) (*domain.UserAccount, error) {
	ctx, span := tracer.Start(ctx, "SQLite.CreateUser")
	defer span.End()

	m := userModel{
		ID:           u.ID,
		Email:        strings.ToLower(strings.TrimSpace(u.Email)),
		PasswordHash: u.PasswordHash,
		CreatedAt:    s.now().UTC(),
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &domain.ErrConflict{Message: "E-mail já cadastrado"}
		}
		return nil, wrap("create usuario", err)
	}
	return m.toDomain(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetUserByEmail")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	var m userModel
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.ErrNotFound{Resource: "usuario", ID: email}
	}
	if err != nil {
		return nil, wrap("get usuario", err)
	}
	return m.toDomain(), nil
}

func (m *userModel) toDomain() *domain.UserAccount {
	return &domain.UserAccount{ID: m.ID, Email: m.Email, PasswordHash: m.PasswordHash, CreatedAt: m.CreatedAt}
}

func wrap(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &domain.ErrConflict{Message: "registro já existe"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: "sqlite/" + op}
	}
	return &domain.ErrExternalService{Service: "sqlite", Err: fmt.Errorf("%s: %w", op, err)}
}
