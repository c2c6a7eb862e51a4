// Пакет service реализует бизнес-логику коротких ссылок.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/BuzzLyutic/shortlink/internal/shortcode"
	"github.com/BuzzLyutic/shortlink/internal/storage"
)

// Кастомные ошибки, возвращаемые сервисом
var (
	ErrInvalidURL          = errors.New("invalid URL")
	ErrEmptyURL            = fmt.Errorf("%w: URL cannot be empty", ErrInvalidURL)
	ErrInvalidCodeFormat   = fmt.Errorf("requested code: %w", shortcode.ErrInvalidFormat)
	ErrInvalidTTL          = errors.New("ttl must be positive")
	ErrCodeTaken           = errors.New("requested short code is already taken")
	ErrGenerationExhausted = errors.New("failed to generate unique code after max attempts")
	ErrCodeNotFound        = errors.New("short code not found")
	ErrExpired             = errors.New("short link has expired")
)

const (
	DefaultMaxAttempts  = 10   // Максимальное кол-во попыток разрешения коллизий
	DefaultMaxURLLength = 2048 // Максимальная длина целевого URL
)

// GenerateFunc создает кандидата в короткий код заданной длины
type GenerateFunc func(length int) (string, error)

// Config содержит конфиг сервиса
type Config struct {
	BaseURL      string        // Базовый URL для коротких ссылок
	DefaultTTL   time.Duration // TTL для ссылок по умолчанию, 0 = бессрочно
	CodeLength   int           // Длина генерируемого кода
	MaxAttempts  int           // Предел попыток при коллизиях
	MaxURLLength int

	Generate GenerateFunc     // по умолчанию shortcode.Generate
	Now      func() time.Time // по умолчанию time.Now
	Logger   *slog.Logger
}

// Shortener предоставляет операции над короткими ссылками
type Shortener struct {
	storage storage.Storage
	config  Config
	logger  *slog.Logger
}

// New создает новый сервис Shortener
func New(store storage.Storage, config Config) *Shortener {
	if config.CodeLength <= 0 {
		config.CodeLength = shortcode.DefaultLength
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.MaxURLLength <= 0 {
		config.MaxURLLength = DefaultMaxURLLength
	}
	if config.Generate == nil {
		config.Generate = shortcode.Generate
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Shortener{
		storage: store,
		config:  config,
		logger:  logger,
	}
}

// CreateRequest содержит параметры новой ссылки
type CreateRequest struct {
	URL  string
	Code string         // пустая строка = сгенерировать код
	TTL  *time.Duration // nil = TTL по умолчанию
}

// CreateResult содержит созданную ссылку
type CreateResult struct {
	Code      string
	ShortURL  string
	TargetURL string
	CreatedAt time.Time
	ExpiresAt *time.Time
	Custom    bool
}

// Create создает короткую ссылку.
// Запрошенный код вставляется один раз; сгенерированный перевыбирается при коллизии
// не более MaxAttempts раз.
func (s *Shortener) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if err := s.validateURL(req.URL); err != nil {
		return nil, err
	}

	ttl := s.config.DefaultTTL
	if req.TTL != nil {
		if *req.TTL <= 0 {
			return nil, ErrInvalidTTL
		}
		ttl = *req.TTL
	}

	if req.Code != "" {
		return s.createCustom(ctx, req.URL, req.Code, ttl)
	}

	for attempt := 0; attempt < s.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		code, err := s.config.Generate(s.config.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("generating code: %w", err)
		}

		link := s.newLink(code, req.URL, ttl, false)
		err = s.storage.Insert(ctx, link)
		if err == nil {
			return s.result(link), nil
		}
		if !errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("saving link: %w", err)
		}

		// Коллизия
		s.logger.Debug("short code collision",
			slog.String("code", code),
			slog.Int("attempt", attempt+1),
		)
	}

	s.logger.Warn("code space saturated",
		slog.Int("code_length", s.config.CodeLength),
		slog.Int("attempts", s.config.MaxAttempts),
	)
	return nil, ErrGenerationExhausted
}

func (s *Shortener) createCustom(ctx context.Context, targetURL, code string, ttl time.Duration) (*CreateResult, error) {
	if err := shortcode.Validate(code); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCodeFormat, err)
	}

	link := s.newLink(code, targetURL, ttl, true)
	if err := s.storage.Insert(ctx, link); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrCodeTaken
		}
		return nil, fmt.Errorf("saving link: %w", err)
	}

	return s.result(link), nil
}

func (s *Shortener) newLink(code, targetURL string, ttl time.Duration, custom bool) storage.Link {
	now := s.config.Now()

	var expiresAt *time.Time
	if ttl > 0 {
		t := now.Add(ttl)
		expiresAt = &t
	}

	return storage.Link{
		Code:      code,
		TargetURL: targetURL,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		Custom:    custom,
	}
}

func (s *Shortener) result(link storage.Link) *CreateResult {
	return &CreateResult{
		Code:      link.Code,
		ShortURL:  s.buildShortURL(link.Code),
		TargetURL: link.TargetURL,
		CreatedAt: link.CreatedAt,
		ExpiresAt: link.ExpiresAt,
		Custom:    link.Custom,
	}
}

// Resolve возвращает целевой URL по коду и засчитывает переход.
// Срок жизни проверяется здесь же: очистка может еще не дойти до ссылки.
func (s *Shortener) Resolve(ctx context.Context, code string) (string, error) {
	if !shortcode.IsValid(code) {
		return "", ErrCodeNotFound
	}

	link, err := s.storage.Get(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrCodeNotFound
		}
		return "", fmt.Errorf("getting link: %w", err)
	}

	if link.IsExpired(s.config.Now()) {
		return "", ErrExpired
	}

	// Счетчик не влияет на результат
	if err := s.storage.IncrementVisit(ctx, code); err != nil {
		s.logger.Warn("failed to count visit",
			slog.String("code", code),
			slog.Any("error", err),
		)
	}

	return link.TargetURL, nil
}

// Delete удаляет ссылку
func (s *Shortener) Delete(ctx context.Context, code string) error {
	if !shortcode.IsValid(code) {
		return ErrCodeNotFound
	}

	if err := s.storage.Delete(ctx, code); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("deleting link: %w", err)
	}

	return nil
}

// LinkStats содержит статистику ссылки
type LinkStats struct {
	Code       string
	VisitCount int64
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	Expired    bool
}

// Stats возвращает статистику, в том числе для истекшей, но не удаленной ссылки
func (s *Shortener) Stats(ctx context.Context, code string) (*LinkStats, error) {
	if !shortcode.IsValid(code) {
		return nil, ErrCodeNotFound
	}

	link, err := s.storage.Get(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("getting link: %w", err)
	}

	return &LinkStats{
		Code:       link.Code,
		VisitCount: link.VisitCount,
		CreatedAt:  link.CreatedAt,
		ExpiresAt:  link.ExpiresAt,
		Expired:    link.IsExpired(s.config.Now()),
	}, nil
}

// SweepExpired удаляет истекшие ссылки и возвращает их количество
func (s *Shortener) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := s.storage.SweepExpired(ctx, s.config.Now())
	if err != nil {
		return 0, fmt.Errorf("sweeping expired links: %w", err)
	}
	return removed, nil
}

// Ping проверяет доступность хранилища
func (s *Shortener) Ping(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

// validateURL проверяет валидность URL
func (s *Shortener) validateURL(rawURL string) error {
	if rawURL == "" {
		return ErrEmptyURL
	}

	if len(rawURL) > s.config.MaxURLLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidURL, s.config.MaxURLLength)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}

	if !parsed.IsAbs() || parsed.Host == "" {
		return ErrInvalidURL
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidURL
	}

	return nil
}

// buildShortURL собирает полную укороченную строку
func (s *Shortener) buildShortURL(code string) string {
	if s.config.BaseURL == "" {
		return code
	}
	return s.config.BaseURL + "/" + code
}
