// Package testhelpers builds seeded SQLite stores for package tests.
package testhelpers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kjstillabower/agroclima-service/internal/store"
)

// Fixture rows. Names are deliberately inserted out of order, and the Goiás
// rows carry accents, so tests can check the store sorts them by collation
// rather than by bytes.
var (
	fixtureStates = []struct {
		id         int
		name, abbr string
	}{
		{41, "Paraná", "PR"},
		{35, "Bahia", "BA"},
		{51, "Mato Grosso", "MT"},
		{52, "Goiás", "GO"},
		{99, "Sem Municipios", "SM"},
	}
	fixtureMunicipalities = []struct {
		id       int
		name     string
		lat, lon float64
		state    int
	}{
		{4106902, "Curitiba", -25.4284, -49.2733, 41},
		{4113700, "Londrina", -23.3045, -51.1696, 41},
		{4104808, "Cascavel", -24.9555, -53.4552, 41},
		{5103403, "Cuiabá", -15.6014, -56.0979, 51},
		{5107925, "Sorriso", -12.5425, -55.7211, 51},
		{2927408, "Salvador", -12.9714, -38.5014, 35},
		{5218805, "Rio Verde", -17.7923, -50.9192, 52},
		{5200258, "Águas Lindas de Goiás", -15.7617, -48.2816, 52},
		{5201108, "Anápolis", -16.3281, -48.9530, 52},
		{5208707, "Goiânia", -16.6869, -49.2648, 52},
	}
	fixtureCrops = []struct {
		id                                                       int
		name, scientific, description, climate, soil, fertilizer string
	}{
		{7, "Soja", "Glycine max", "Leguminosa oleaginosa", "tropical", "Latossolo bem drenado", "NPK 0-20-20"},
		{3, "Milho", "Zea mays", "Cereal de verão", "quente e úmido", "Argiloso fértil", "Nitrogênio em cobertura"},
		{5, "Feijão", "Phaseolus vulgaris", "", "ameno", "", ""},
	}
	fixturePrices = []struct {
		crop  int
		date  string
		price float64
	}{
		{7, "2024-03-02", 128.40},
		{7, "2024-03-01", 127.10},
		{7, "2024-03-03", 129.95},
		{3, "2024-03-01", 58.20},
	}
)

// SoyCropID is the fixture crop the prediction tests use.
const SoyCropID = 7

// NewStore opens a migrated, empty SQLite store in a temp dir and closes it on cleanup.
func NewStore(t *testing.T) *store.SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "agroclima_test.db")
	s, err := store.Open(context.Background(), store.Options{
		Driver:       "sqlite3",
		DSN:          dsn,
		MaxOpenConns: 4,
		AutoMigrate:  true,
	})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// NewSeededStore returns NewStore populated with the fixture rows.
func NewSeededStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s := NewStore(t)
	for _, st := range fixtureStates {
		mustExec(t, s, `INSERT INTO estados (codigo_uf, nome, uf) VALUES (?, ?, ?)`, st.id, st.name, st.abbr)
	}
	for _, m := range fixtureMunicipalities {
		mustExec(t, s, `INSERT INTO municipios (codigo_ibge, nome, latitude, longitude, codigo_uf) VALUES (?, ?, ?, ?, ?)`,
			m.id, m.name, m.lat, m.lon, m.state)
	}
	for _, c := range fixtureCrops {
		mustExec(t, s, `INSERT INTO sementes (id, nome, nome_cientifico, descricao, clima_ideal, solo_ideal, adubacao) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.id, c.name, c.scientific, nullIfEmpty(c.description), c.climate, nullIfEmpty(c.soil), nullIfEmpty(c.fertilizer))
	}
	for _, p := range fixturePrices {
		mustExec(t, s, `INSERT INTO cotacoes (semente_id, data, preco) VALUES (?, ?, ?)`, p.crop, p.date, p.price)
	}
	return s
}

func mustExec(t *testing.T, s *store.SQLStore, query string, args ...interface{}) {
	t.Helper()
	if _, err := s.DB().Exec(query, args...); err != nil {
		t.Fatalf("seed %q: %v", query, err)
	}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
