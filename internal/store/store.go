// Package store reads the reference data (states, municipalities, crops and
// price quotes) from the relational database.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kjstillabower/agroclima-service/internal/models"
	"github.com/kjstillabower/agroclima-service/internal/observability"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

//go:embed schema.sql
var schemaSQL string

// Store is the read surface the services depend on.
type Store interface {
	ListStates(ctx context.Context) ([]models.State, error)
	ListMunicipalities(ctx context.Context, stateID int) ([]models.Municipality, error)
	ListCrops(ctx context.Context) ([]models.CropSummary, error)
	GetCrop(ctx context.Context, id int) (models.Crop, error)
	ListPrices(ctx context.Context, cropID int) ([]models.PricePoint, error)
	Ping(ctx context.Context) error
}

// Options configures the connection pool.
type Options struct {
	Driver       string // "mysql" or "sqlite3"
	DSN          string
	Host         string
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	AutoMigrate  bool
}

// SQLStore implements Store over database/sql. The pool is shared by all requests.
type SQLStore struct {
	db *sql.DB
}

// Open creates the pool, verifies connectivity and optionally applies the schema.
func Open(ctx context.Context, opts Options) (*SQLStore, error) {
	dsn, err := buildDSN(opts)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}
	maxConns := opts.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}

	s := &SQLStore{db: db}
	if opts.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// buildDSN returns the driver DSN. For mysql, parseTime is forced on so DATE
// columns scan as time.Time whether the DSN came from config or env.
func buildDSN(opts Options) (string, error) {
	switch opts.Driver {
	case "mysql":
		var cfg *mysql.Config
		if opts.DSN != "" {
			parsed, err := mysql.ParseDSN(opts.DSN)
			if err != nil {
				return "", fmt.Errorf("parse mysql dsn: %w", err)
			}
			cfg = parsed
		} else {
			cfg = mysql.NewConfig()
			cfg.User = opts.User
			cfg.Passwd = opts.Password
			cfg.Net = "tcp"
			cfg.Addr = opts.Host
			cfg.DBName = opts.Database
		}
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil
	case "sqlite3":
		if opts.DSN == "" {
			return "", errors.New("sqlite3 dsn is required")
		}
		return opts.DSN, nil
	default:
		return "", fmt.Errorf("unsupported store driver %q", opts.Driver)
	}
}

// Migrate applies the embedded schema. Statements are executed one by one
// since the mysql driver rejects multi-statement Exec by default.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// DB exposes the pool for seeding and tests.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Ping checks the pool can reach the database. Used by /health.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool. Call during shutdown.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) ListStates(ctx context.Context) (states []models.State, err error) {
	defer observe("list_states", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `SELECT codigo_uf, nome, uf FROM estados ORDER BY nome`)
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}
	defer rows.Close()

	states = make([]models.State, 0)
	for rows.Next() {
		var st models.State
		if err := rows.Scan(&st.ID, &st.Name, &st.Abbreviation); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate states: %w", err)
	}
	sortByName(states, func(st models.State) string { return st.Name })
	return states, nil
}

func (s *SQLStore) ListMunicipalities(ctx context.Context, stateID int) (out []models.Municipality, err error) {
	defer observe("list_municipalities", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT codigo_ibge, nome, latitude, longitude FROM municipios WHERE codigo_uf = ? ORDER BY nome`, stateID)
	if err != nil {
		return nil, fmt.Errorf("query municipalities: %w", err)
	}
	defer rows.Close()

	out = make([]models.Municipality, 0)
	for rows.Next() {
		var m models.Municipality
		if err := rows.Scan(&m.ID, &m.Name, &m.Latitude, &m.Longitude); err != nil {
			return nil, fmt.Errorf("scan municipality: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate municipalities: %w", err)
	}
	sortByName(out, func(m models.Municipality) string { return m.Name })
	return out, nil
}

func (s *SQLStore) ListCrops(ctx context.Context) (crops []models.CropSummary, err error) {
	defer observe("list_crops", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `SELECT id, nome FROM sementes ORDER BY nome`)
	if err != nil {
		return nil, fmt.Errorf("query crops: %w", err)
	}
	defer rows.Close()

	crops = make([]models.CropSummary, 0)
	for rows.Next() {
		var c models.CropSummary
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan crop: %w", err)
		}
		crops = append(crops, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crops: %w", err)
	}
	sortByName(crops, func(c models.CropSummary) string { return c.Name })
	return crops, nil
}

// GetCrop returns the full crop row or ErrNotFound.
func (s *SQLStore) GetCrop(ctx context.Context, id int) (crop models.Crop, err error) {
	defer observe("get_crop", time.Now(), &err)

	var scientific, description, climate, soil, fertilizer sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT id, nome, nome_cientifico, descricao, clima_ideal, solo_ideal, adubacao FROM sementes WHERE id = ?`, id,
	).Scan(&crop.ID, &crop.Name, &scientific, &description, &climate, &soil, &fertilizer)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Crop{}, fmt.Errorf("crop %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Crop{}, fmt.Errorf("query crop %d: %w", id, err)
	}
	crop.ScientificName = scientific.String
	crop.Description = description.String
	crop.IdealClimate = climate.String
	crop.IdealSoil = soil.String
	crop.FertilizerNotes = fertilizer.String
	return crop, nil
}

// ListPrices returns the crop's quote history, oldest first.
func (s *SQLStore) ListPrices(ctx context.Context, cropID int) (prices []models.PricePoint, err error) {
	defer observe("list_prices", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT data, preco FROM cotacoes WHERE semente_id = ? ORDER BY data`, cropID)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	prices = make([]models.PricePoint, 0)
	for rows.Next() {
		var (
			d dateValue
			p models.PricePoint
		)
		if err := rows.Scan(&d, &p.Price); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		p.Date = d.String()
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prices: %w", err)
	}
	return prices, nil
}

// observe records query latency and outcome. Not-found is a successful query.
func observe(query string, start time.Time, err *error) {
	status := "success"
	if *err != nil && !errors.Is(*err, ErrNotFound) {
		status = "error"
	}
	observability.StoreQueriesTotal.WithLabelValues(query, status).Inc()
	observability.StoreQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
}
