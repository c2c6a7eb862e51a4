package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso / libsql
	_ "modernc.org/sqlite"                               // SQLite без CGO
)

// SQLStorage реализация хранилища поверх SQLite или libsql.
// Время хранится в миллисекундах Unix.
type SQLStorage struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS links (
	code        TEXT PRIMARY KEY,
	target_url  TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	expires_at  INTEGER NULL,
	visit_count INTEGER NOT NULL DEFAULT 0,
	custom      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_links_expires_at ON links (expires_at);
`

// NewSQLStorage открывает базу по DSN. libsql://, wss:// и https:// уходят
// в драйвер libsql, все остальное считается путем к файлу SQLite (или :memory:).
func NewSQLStorage(dsn string) (*SQLStorage, error) {
	driverName := sqlDriverFor(dsn)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if driverName == "sqlite" {
		// SQLite допускает одного писателя; одно соединение также сохраняет :memory: базу
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		for _, pragma := range []string{
			"PRAGMA busy_timeout = 5000",
			"PRAGMA journal_mode = WAL",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("applying %q: %w", pragma, err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &SQLStorage{db: db}, nil
}

func sqlDriverFor(dsn string) string {
	for _, prefix := range []string{"libsql://", "wss://", "ws://", "https://", "http://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "libsql"
		}
	}
	return "sqlite"
}

// Insert сохраняет ссылку одним запросом
func (s *SQLStorage) Insert(ctx context.Context, link Link) error {
	query := `
		INSERT INTO links (code, target_url, created_at, expires_at, visit_count, custom)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT (code) DO NOTHING
	`

	var expiresAt any
	if link.ExpiresAt != nil {
		expiresAt = link.ExpiresAt.UnixMilli()
	}

	result, err := s.db.ExecContext(ctx, query,
		link.Code,
		link.TargetURL,
		link.CreatedAt.UnixMilli(),
		expiresAt,
		boolToInt(link.Custom),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
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
func (s *SQLStorage) Get(ctx context.Context, code string) (*Link, error) {
	query := `
		SELECT code, target_url, created_at, expires_at, visit_count, custom
		FROM links
		WHERE code = ?
	`

	var (
		link      Link
		createdAt int64
		expiresAt sql.NullInt64
		custom    int64
	)
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&link.Code,
		&link.TargetURL,
		&createdAt,
		&expiresAt,
		&link.VisitCount,
		&custom,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying link by code: %w", err)
	}

	link.CreatedAt = time.UnixMilli(createdAt).UTC()
	if expiresAt.Valid {
		t := time.UnixMilli(expiresAt.Int64).UTC()
		link.ExpiresAt = &t
	}
	link.Custom = custom != 0

	return &link, nil
}

// IncrementVisit увеличивает счетчик одним UPDATE
func (s *SQLStorage) IncrementVisit(ctx context.Context, code string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE links SET visit_count = visit_count + 1 WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("incrementing visits: %w", err)
	}

	return expectOneRow(result)
}

// Delete удаляет ссылку
func (s *SQLStorage) Delete(ctx context.Context, code string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM links WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("deleting link: %w", err)
	}

	return expectOneRow(result)
}

// SweepExpired удаляет истекшие ссылки
func (s *SQLStorage) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM links WHERE expires_at IS NOT NULL AND expires_at <= ?`

	result, err := s.db.ExecContext(ctx, query, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sweeping expired links: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	return removed, nil
}

// Ping проверяет соединение с БД
func (s *SQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close закрывает соединение с БД
func (s *SQLStorage) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
