package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage реализация хранилища в памяти
type MemoryStorage struct {
	mu     sync.RWMutex
	byCode map[string]*Link
}

// NewMemoryStorage создает новое хранилище в памяти
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		byCode: make(map[string]*Link),
	}
}

// Insert сохраняет ссылку, если код свободен
func (s *MemoryStorage) Insert(ctx context.Context, link Link) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[link.Code]; ok {
		return ErrAlreadyExists
	}

	linkCopy := link // копия, чтобы избежать внешних изменений
	linkCopy.ExpiresAt = copyTime(link.ExpiresAt)
	s.byCode[link.Code] = &linkCopy

	return nil
}

// Get возвращает ссылку по коду
func (s *MemoryStorage) Get(ctx context.Context, code string) (*Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}

	linkCopy := *link
	linkCopy.ExpiresAt = copyTime(link.ExpiresAt)
	return &linkCopy, nil
}

// IncrementVisit увеличивает счетчик переходов
func (s *MemoryStorage) IncrementVisit(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.byCode[code]
	if !ok {
		return ErrNotFound
	}
	link.VisitCount++

	return nil
}

// Delete удаляет ссылку
func (s *MemoryStorage) Delete(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[code]; !ok {
		return ErrNotFound
	}
	delete(s.byCode, code)

	return nil
}

// SweepExpired удаляет истекшие ссылки
func (s *MemoryStorage) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for code, link := range s.byCode {
		if link.IsExpired(now) {
			delete(s.byCode, code)
			removed++
		}
	}

	return removed, nil
}

// Ping для хранилища в памяти всегда успешен
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close закрывает хранилище. Для хранения данных в памяти это не требуется
func (s *MemoryStorage) Close() error {
	return nil
}

// Len возвращает кол-во сохраненных ссылок (для тестов)
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byCode)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
