// Пакет handler предоставляет HTTP API сервиса коротких ссылок
package handler

import "time"

// Тело запроса на создание ссылки
type CreateRequest struct {
	URL        string `json:"url"`
	Code       string `json:"code,omitempty"`        // желаемый код, пусто = сгенерировать
	TTLSeconds *int64 `json:"ttl_seconds,omitempty"` // nil = TTL по умолчанию
}

// Тело ответа на создание ссылки
type CreateResponse struct {
	Code      string     `json:"code"`
	ShortURL  string     `json:"short_url"`
	TargetURL string     `json:"target_url"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Статистика ссылки
type StatsResponse struct {
	Code       string     `json:"code"`
	VisitCount int64      `json:"visit_count"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Expired    bool       `json:"expired"`
}

// Ответ ошибки
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
