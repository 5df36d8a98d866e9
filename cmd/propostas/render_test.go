package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const draftYAML = `
titulo: Reforma da Loja
cliente_nome: Maria Souza
validade_dias: 15
itens:
  - descricao: Pintura
    quantidade: 2
    valor_unit: 150.5
  - descricao: Limpeza
    quantidade: "1"
    valor_unit: "99,00"
`

const companyYAML = `
nome: Oficina Azul
cor_primaria: "#112233"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRender_Markdown(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	err := runRender(context.Background(), &out, renderOptions{
		draftPath:   writeFile(t, dir, "draft.yaml", draftYAML),
		companyPath: writeFile(t, dir, "empresa.yaml", companyYAML),
		format:      "md",
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Reforma da Loja")
	assert.Contains(t, out.String(), "Oficina Azul")
	assert.Contains(t, out.String(), "400,00")
}

func TestRender_JSONFromJSONFile(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	err := runRender(context.Background(), &out, renderOptions{
		draftPath: writeFile(t, dir, "draft.json", `{"titulo":"Site","itens":[{"descricao":"Design","quantidade":1,"valor_unit":30}]}`),
		format:    "json",
		live:      true,
	})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "live", doc["mode"])
}

func TestRender_PDFToDerivedFilename(t *testing.T) {
	dir := t.TempDir()
	draft := writeFile(t, dir, "draft.yaml", draftYAML)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var out bytes.Buffer
	err = runRender(context.Background(), &out, renderOptions{draftPath: draft, format: "pdf"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "proposta-reforma-da-loja.pdf written")

	data, err := os.ReadFile(filepath.Join(dir, "proposta-reforma-da-loja.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRender_PDFWithAccentedDescriptions(t *testing.T) {
	dir := t.TempDir()
	draft := writeFile(t, dir, "draft.yaml", `
titulo: Manutenção Predial
cliente_nome: João Araújo
observacoes: Inclui revisão elétrica.
itens:
  - descricao: Manutenção mensal
    quantidade: 1
    valor_unit: 300
  - descricao: ""
    quantidade: 2
    valor_unit: 50
`)
	out := filepath.Join(dir, "out.pdf")

	var stdout bytes.Buffer
	err := runRender(context.Background(), &stdout, renderOptions{draftPath: draft, format: "pdf", out: out})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRender_Errors(t *testing.T) {
	dir := t.TempDir()
	draft := writeFile(t, dir, "draft.yaml", draftYAML)

	err := runRender(context.Background(), &bytes.Buffer{}, renderOptions{draftPath: draft, format: "docx"})
	assert.ErrorContains(t, err, "unknown format")

	err = runRender(context.Background(), &bytes.Buffer{}, renderOptions{draftPath: filepath.Join(dir, "missing.yaml"), format: "md"})
	assert.Error(t, err)

	empty := writeFile(t, dir, "empty.yaml", "")
	err = runRender(context.Background(), &bytes.Buffer{}, renderOptions{draftPath: empty, format: "md"})
	assert.ErrorContains(t, err, "empty document")
}

func TestRootCmd_Version(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), Version)
}
