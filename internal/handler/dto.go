package handler

import (
	"strings"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
)

// normalizer is implemented by request bodies that clean up their fields
// before validation.
type normalizer interface {
	normalize()
}

type lineItemRequest struct {
	Descricao  string        `json:"descricao" validate:"max=500"`
	Quantidade domain.Number `json:"quantidade"`
	ValorUnit  domain.Number `json:"valor_unit"`
}

// proposalRequest is the body of POST /v1/propostas and PUT /v1/propostas/{id}.
type proposalRequest struct {
	Titulo          string            `json:"titulo" validate:"max=200"`
	ClienteNome     string            `json:"cliente_nome" validate:"max=200"`
	ClienteEmail    string            `json:"cliente_email" validate:"omitempty,email"`
	ClienteTelefone string            `json:"cliente_telefone" validate:"max=40"`
	Observacoes     string            `json:"observacoes" validate:"max=5000"`
	ValidadeDias    domain.Number     `json:"validade_dias" validate:"gte=0"`
	Status          string            `json:"status" validate:"status"`
	Itens           []lineItemRequest `json:"itens" validate:"max=500,dive"`
}

func (p *proposalRequest) normalize() {
	p.ClienteEmail = strings.TrimSpace(p.ClienteEmail)
	p.Status = strings.TrimSpace(p.Status)
}

func (p *proposalRequest) toDraft(id string) domain.Draft {
	d := domain.Draft{
		ID:              id,
		Titulo:          p.Titulo,
		ClienteNome:     p.ClienteNome,
		ClienteEmail:    p.ClienteEmail,
		ClienteTelefone: p.ClienteTelefone,
		Observacoes:     p.Observacoes,
		ValidadeDias:    p.ValidadeDias,
		Status:          domain.Status(p.Status),
		Itens:           make([]domain.LineItem, 0, len(p.Itens)),
	}
	for _, it := range p.Itens {
		d.Itens = append(d.Itens, domain.LineItem{
			Descricao:  it.Descricao,
			Quantidade: it.Quantidade,
			ValorUnit:  it.ValorUnit,
		})
	}
	return d
}

type statusRequest struct {
	Status string `json:"status" validate:"required,status"`
}

// companyRequest is the body of PUT /v1/empresa.
type companyRequest struct {
	Nome        string `json:"nome" validate:"max=200"`
	CNPJ        string `json:"cnpj" validate:"max=20"`
	Telefone    string `json:"telefone" validate:"max=40"`
	Email       string `json:"email" validate:"omitempty,email"`
	Endereco    string `json:"endereco" validate:"max=500"`
	CorPrimaria string `json:"cor_primaria" validate:"omitempty,brandcolor"`
	LogoURL     string `json:"logo_url" validate:"omitempty,url"`
}

func (c *companyRequest) normalize() {
	c.Email = strings.TrimSpace(c.Email)
	c.CorPrimaria = strings.TrimSpace(c.CorPrimaria)
	c.LogoURL = strings.TrimSpace(c.LogoURL)
}

func (c *companyRequest) toCompany() domain.Company {
	return domain.Company{
		Nome:        c.Nome,
		CNPJ:        c.CNPJ,
		Telefone:    c.Telefone,
		Email:       c.Email,
		Endereco:    c.Endereco,
		CorPrimaria: c.CorPrimaria,
		LogoURL:     c.LogoURL,
	}
}

// credentials trims the e-mail before validation.
type credentials struct {
	domain.Credentials
}

func (c *credentials) normalize() {
	c.Email = strings.TrimSpace(c.Email)
}
