package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"dedupstore/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const fileColumns = `id, name, hash, location, size_bytes, mime_type, created_at`

// PostgresStorage is an Index backed by a Postgres table.
type PostgresStorage struct {
	Pool  *pgxpool.Pool
	newID func() string
	now   func() time.Time
}

// NewPostgresStorage connects to databaseURL and applies the schema.
func NewPostgresStorage(ctx context.Context, databaseURL string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStorage{Pool: pool, newID: uuid.NewString, now: time.Now}, nil
}

// RunMigrations applies the embedded schema files in name order. They are idempotent.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	s.Pool.Close()
	return nil
}

func scanFile(row pgx.Row) (models.FileRecord, bool, error) {
	var f models.FileRecord
	err := row.Scan(&f.ID, &f.Name, &f.Hash, &f.Location, &f.Size, &f.MimeType, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.FileRecord{}, false, nil
	}
	if err != nil {
		return models.FileRecord{}, false, err
	}
	return f, true, nil
}

func (s *PostgresStorage) FindByID(ctx context.Context, id string) (models.FileRecord, bool, error) {
	return scanFile(s.Pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id=$1`, id))
}

func (s *PostgresStorage) FindByHash(ctx context.Context, hash string) (models.FileRecord, bool, error) {
	const q = `SELECT ` + fileColumns + ` FROM files WHERE hash=$1 AND location <> '' ORDER BY created_at, id LIMIT 1`
	return scanFile(s.Pool.QueryRow(ctx, q, hash))
}

func (s *PostgresStorage) Create(ctx context.Context, record models.FileRecord) (models.FileRecord, error) {
	record.ID = s.newID()
	record.Location = ""
	record.CreatedAt = s.now().Unix()

	const q = `INSERT INTO files (` + fileColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := s.Pool.Exec(ctx, q, record.ID, record.Name, record.Hash, record.Location, record.Size, record.MimeType, record.CreatedAt)
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("insert file: %w", err)
	}
	return record, nil
}

func (s *PostgresStorage) Update(ctx context.Context, record models.FileRecord) (models.FileRecord, error) {
	const q = `UPDATE files SET name=$2, hash=$3, location=$4, size_bytes=$5, mime_type=$6 WHERE id=$1`
	cmd, err := s.Pool.Exec(ctx, q, record.ID, record.Name, record.Hash, record.Location, record.Size, record.MimeType)
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("update file: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return models.FileRecord{}, fmt.Errorf("file %s: %w", record.ID, models.ErrNotFound)
	}
	return record, nil
}

func (s *PostgresStorage) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+fileColumns+` FROM files ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.FileRecord
	for rows.Next() {
		var f models.FileRecord
		if err := rows.Scan(&f.ID, &f.Name, &f.Hash, &f.Location, &f.Size, &f.MimeType, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

var _ IndexLister = (*PostgresStorage)(nil)
