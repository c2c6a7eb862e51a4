// Пакет storage описывает хранилище коротких ссылок и его реализации.
package storage

import (
	"context"
	"errors"
	"time"
)

// Кастомные ошибки для реализаций хранилищ
var (
	ErrNotFound      = errors.New("link not found")
	ErrAlreadyExists = errors.New("short code already exists")
)

// Link представляет собой сохраненное отображение кода на URL
type Link struct {
	Code       string
	TargetURL  string
	CreatedAt  time.Time
	ExpiresAt  *time.Time // nil означает отсутствие срока истечения
	VisitCount int64
	Custom     bool // true для кода, выбранного пользователем
}

// IsExpired проверяет, истек ли срок жизни ссылки на момент now
func (l *Link) IsExpired(now time.Time) bool {
	if l.ExpiresAt == nil {
		return false
	}
	return !now.Before(*l.ExpiresAt)
}

// Storage определяет интерфейс хранилища ссылок.
// Все операции над одним кодом атомарны на стороне хранилища.
type Storage interface {
	// Insert сохраняет ссылку, если кода еще нет. Иначе ErrAlreadyExists,
	// в том числе для истекшей, но еще не удаленной ссылки.
	Insert(ctx context.Context, link Link) error
	// Get возвращает ссылку по коду, истекшие тоже. ErrNotFound если кода нет.
	Get(ctx context.Context, code string) (*Link, error)
	// IncrementVisit атомарно увеличивает счетчик переходов.
	IncrementVisit(ctx context.Context, code string) error
	// Delete удаляет ссылку. ErrNotFound если кода нет.
	Delete(ctx context.Context, code string) error
	// SweepExpired удаляет ссылки с expires_at <= now и возвращает их количество.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
	// Close закрывает хранилище и освобождает ресурсы.
	Close() error
}
