// Пакет shortcode генерирует и валидирует короткие коды ссылок
package shortcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Длина кода по умолчанию и допустимые границы
const (
	DefaultLength = 7
	MinLength     = 1
	MaxLength     = 64
)

// Алфавит для генерации: без визуально похожих символов (0/O/o, 1/l/I)
const alphabet = "23456789abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"

var alphabetLen = big.NewInt(int64(len(alphabet)))

// ErrInvalidFormat возвращается для кода, не подходящего под формат
var ErrInvalidFormat = errors.New("invalid short code format")

// Имена, занятые служебными маршрутами
var reserved = map[string]struct{}{
	"api":     {},
	"health":  {},
	"healthz": {},
	"metrics": {},
	"static":  {},
	"assets":  {},
	"config":  {},
	"docs":    {},
}

// Generate создает случайный код заданной длины.
// Каждый вызов независим: состояние не разделяется, источник случайности crypto/rand.
func Generate(length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", fmt.Errorf("%w: length %d out of range [%d, %d]", ErrInvalidFormat, length, MinLength, MaxLength)
	}

	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("reading random source: %w", err)
		}
		result[i] = alphabet[n.Int64()]
	}

	return string(result), nil
}

// Validate проверяет код, запрошенный пользователем.
// Код возвращается без изменений, если он корректен.
// Пользовательский код может содержать весь набор base64url (a-z, A-Z, 0-9, _ и -),
// включая неоднозначные символы 0, O, o, 1, l, I, которых нет в алфавите Generate.
func Validate(code string) error {
	if code == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFormat)
	}
	if len(code) > MaxLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidFormat, MaxLength)
	}
	for _, c := range code {
		if !isValidChar(c) {
			return fmt.Errorf("%w: character %q is not allowed", ErrInvalidFormat, c)
		}
	}
	if IsReserved(code) {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidFormat, code)
	}
	return nil
}

// IsValid проверяет, может ли строка быть существующим коротким кодом
func IsValid(code string) bool {
	if len(code) < MinLength || len(code) > MaxLength {
		return false
	}

	for _, c := range code {
		if !isValidChar(c) {
			return false
		}
	}

	return true
}

// IsReserved сообщает, совпадает ли код с именем служебного маршрута
func IsReserved(code string) bool {
	_, ok := reserved[strings.ToLower(code)]
	return ok
}

// isValidChar проверяет принадлежность символа к base64url набору
func isValidChar(c rune) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_' || c == '-'
}
