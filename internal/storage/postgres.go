package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgreSQL реализация хранилища
type PostgresStorage struct {
	db *sql.DB
}

// Конфигурация подключения для PostgreSQL
type PostgresConfig struct {
	DSN             string        // Строка подключения
	MaxOpenConns    int           // Макс. открытых соединений
	MaxIdleConns    int           // Макс. незанятых соединений
	ConnMaxLifetime time.Duration // Макс. время жизни соединения
	ConnMaxIdleTime time.Duration // Макс. время жизни незанятого соединения
}

// Конфиг Postgres по умолчанию
func DefaultPostgresConfig(dsn string) PostgresConfig {
	return PostgresConfig{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS links (
	code        TEXT PRIMARY KEY,
	target_url  TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NULL,
	visit_count BIGINT NOT NULL DEFAULT 0,
	custom      BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_links_expires_at ON links (expires_at) WHERE expires_at IS NOT NULL;
`

func NewPostgresStorage(cfg PostgresConfig) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Кофиг пулов соединений
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Подтверждение соединения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &PostgresStorage{db: db}, nil
}

// Insert сохраняет ссылку одним запросом: уникальность проверяет первичный ключ
func (s *PostgresStorage) Insert(ctx context.Context, link Link) error {
	query := `
		INSERT INTO links (code, target_url, created_at, expires_at, visit_count, custom)
		VALUES ($1, $2, $3, $4, 0, $5)
		ON CONFLICT (code) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		link.Code,
		link.TargetURL,
		link.CreatedAt.UTC(),
		utcOrNil(link.ExpiresAt),
		link.Custom,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("inserting link: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyExists
	}

	return nil
}

// Get возвращает ссылку по коду
func (s *PostgresStorage) Get(ctx context.Context, code string) (*Link, error) {
	query := `
		SELECT code, target_url, created_at, expires_at, visit_count, custom
		FROM links
		WHERE code = $1
	`

	var (
		link      Link
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&link.Code,
		&link.TargetURL,
		&link.CreatedAt,
		&expiresAt,
		&link.VisitCount,
		&link.Custom,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying link by code: %w", err)
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		link.ExpiresAt = &t
	}

	return &link, nil
}

// IncrementVisit увеличивает счетчик в самом UPDATE, без чтения на стороне приложения
func (s *PostgresStorage) IncrementVisit(ctx context.Context, code string) error {
	query := `UPDATE links SET visit_count = visit_count + 1 WHERE code = $1`

	result, err := s.db.ExecContext(ctx, query, code)
	if err != nil {
		return fmt.Errorf("incrementing visits: %w", err)
	}

	return expectOneRow(result)
}

// Delete удаляет ссылку
func (s *PostgresStorage) Delete(ctx context.Context, code string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM links WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("deleting link: %w", err)
	}

	return expectOneRow(result)
}

// SweepExpired удаляет истекшие ссылки
func (s *PostgresStorage) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM links WHERE expires_at IS NOT NULL AND expires_at <= $1`

	result, err := s.db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("sweeping expired links: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	return removed, nil
}

// Close закрывает соединение с БД
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// Ping проверяет соединение с БД
func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// isUniqueViolation проверяет наличие нарушения ограничения уникальности
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// PostgreSQL 23505 код ошибки = unique_violation
		return pqErr.Code == "23505"
	}
	return false
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func utcOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
