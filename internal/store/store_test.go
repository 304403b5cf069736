package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/agroclima-service/internal/store"
	"github.com/kjstillabower/agroclima-service/internal/testhelpers"
)

func TestListStates_SortedByName(t *testing.T) {
	s := testhelpers.NewSeededStore(t)

	states, err := s.ListStates(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 5)

	names := make([]string, len(states))
	for i, st := range states {
		names[i] = st.Name
	}
	assert.Equal(t, []string{"Bahia", "Goiás", "Mato Grosso", "Paraná", "Sem Municipios"}, names)
	assert.Equal(t, "Bahia", states[0].Name)
	assert.Equal(t, "BA", states[0].Abbreviation)
	assert.Equal(t, 35, states[0].ID)
}

func TestListMunicipalities_FilteredAndSorted(t *testing.T) {
	s := testhelpers.NewSeededStore(t)

	tests := []struct {
		stateID int
		want    []string
	}{
		{41, []string{"Cascavel", "Curitiba", "Londrina"}},
		{51, []string{"Cuiabá", "Sorriso"}},
		{35, []string{"Salvador"}},
		{52, []string{"Águas Lindas de Goiás", "Anápolis", "Goiânia", "Rio Verde"}},
	}
	for _, tt := range tests {
		got, err := s.ListMunicipalities(context.Background(), tt.stateID)
		require.NoError(t, err)

		names := make([]string, len(got))
		for i, m := range got {
			names[i] = m.Name
		}
		assert.Equal(t, tt.want, names, "state %d", tt.stateID)
	}
}

func TestListMunicipalities_AccentsAndCaseCollate(t *testing.T) {
	s := testhelpers.NewStore(t)
	db := s.DB()
	_, err := db.Exec(`INSERT INTO estados (codigo_uf, nome, uf) VALUES (21, 'Maranhão', 'MA')`)
	require.NoError(t, err)
	for i, name := range []string{"Zé Doca", "Águas Lindas de Goiás", "Bauru", "Óbidos", "anápolis"} {
		_, err := db.Exec(`INSERT INTO municipios (codigo_ibge, nome, latitude, longitude, codigo_uf) VALUES (?, ?, 0, 0, 21)`,
			2100000+i, name)
		require.NoError(t, err)
	}

	got, err := s.ListMunicipalities(context.Background(), 21)
	require.NoError(t, err)

	names := make([]string, len(got))
	for i, m := range got {
		names[i] = m.Name
	}
	assert.Equal(t, []string{"Águas Lindas de Goiás", "anápolis", "Bauru", "Óbidos", "Zé Doca"}, names)
}

func TestListMunicipalities_CarriesCoordinates(t *testing.T) {
	s := testhelpers.NewSeededStore(t)

	got, err := s.ListMunicipalities(context.Background(), 35)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2927408, got[0].ID)
	assert.InDelta(t, -12.9714, got[0].Latitude, 1e-9)
	assert.InDelta(t, -38.5014, got[0].Longitude, 1e-9)
}

func TestListMunicipalities_EmptyIsNotNil(t *testing.T) {
	s := testhelpers.NewSeededStore(t)

	for _, id := range []int{99, 12345} {
		got, err := s.ListMunicipalities(context.Background(), id)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestListCrops_SortedByName(t *testing.T) {
	s := testhelpers.NewSeededStore(t)

	crops, err := s.ListCrops(context.Background())
	require.NoError(t, err)
	require.Len(t, crops, 3)
	assert.Equal(t, "Feijão", crops[0].Name)
	assert.Equal(t, "Milho", crops[1].Name)
	assert.Equal(t, "Soja", crops[2].Name)
}

func TestGetCrop_Found(t *testing.T) {
	s := testhelpers.NewSeededStore(t)

	crop, err := s.GetCrop(context.Background(), testhelpers.SoyCropID)
	require.NoError(t, err)
	assert.Equal(t, 7, crop.ID)
	assert.Equal(t, "Soja", crop.Name)
	assert.Equal(t, "Glycine max", crop.ScientificName)
	assert.Equal(t, "tropical", crop.IdealClimate)
	assert.Equal(t, "Latossolo bem drenado", crop.IdealSoil)
	assert.Equal(t, "NPK 0-20-20", crop.FertilizerNotes)
}

func TestGetCrop_NullColumnsBecomeEmpty(t *testing.T) {
	s := testhelpers.NewSeededStore(t)

	crop, err := s.GetCrop(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Feijão", crop.Name)
	assert.Empty(t, crop.Description)
	assert.Empty(t, crop.IdealSoil)
	assert.Empty(t, crop.FertilizerNotes)
}

func TestGetCrop_NotFound(t *testing.T) {
	s := testhelpers.NewSeededStore(t)

	_, err := s.GetCrop(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestListPrices_OrderedByDate(t *testing.T) {
	s := testhelpers.NewSeededStore(t)

	prices, err := s.ListPrices(context.Background(), testhelpers.SoyCropID)
	require.NoError(t, err)
	require.Len(t, prices, 3)
	assert.Equal(t, "2024-03-01", prices[0].Date)
	assert.Equal(t, "2024-03-02", prices[1].Date)
	assert.Equal(t, "2024-03-03", prices[2].Date)
	assert.InDelta(t, 127.10, prices[0].Price, 1e-9)
}

func TestListPrices_NoQuotes(t *testing.T) {
	s := testhelpers.NewSeededStore(t)

	prices, err := s.ListPrices(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, prices)
	assert.Empty(t, prices)
}

func TestQueries_FailAfterClose(t *testing.T) {
	s := testhelpers.NewSeededStore(t)
	require.NoError(t, s.Close())

	_, err := s.ListStates(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, store.ErrNotFound))
	assert.Error(t, s.Ping(context.Background()))
}

func TestOpen_MigrateIsIdempotent(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "twice.db")
	opts := store.Options{Driver: "sqlite3", DSN: dsn, AutoMigrate: true}

	first, err := store.Open(context.Background(), opts)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := store.Open(context.Background(), opts)
	require.NoError(t, err)
	defer second.Close()
	assert.NoError(t, second.Migrate(context.Background()))
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := store.Open(context.Background(), store.Options{Driver: "postgres"})
	assert.ErrorContains(t, err, "unsupported store driver")
}
