// Package api содержит общий формат ответов сервисов-участников саги
// и работу с заголовком idempotency-key.
//
// Все корректно обработанные запросы возвращают HTTP 200 с конвертом
// {success, data, message, error}; не-2xx коды используются только для
// ошибок валидации и внутренних сбоев. Publisher считает событие
// доставленным при любом 2xx ответе с валидным JSON телом — ответ
// {success:false} означает «событие неактуально», а не «повторить».
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey — заголовок ключа идемпотентности.
// Обязателен для всех forward и compensation endpoints.
const HeaderIdempotencyKey = "idempotency-key"

// Response — единый конверт ответа сервиса.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK отправляет успешный ответ с данными.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// OKMessage отправляет успешный ответ с сообщением без данных.
func OKMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message})
}

// Fail отправляет ответ {success:false} с HTTP 200.
// Используется для бизнес-отказов (сага не найдена, шаг отклонён):
// transport-уровень успешен, повторная доставка события не нужна.
func Fail(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{Success: false, Message: message})
}

// FailError отправляет ответ {success:false, error} с HTTP 200.
func FailError(c *gin.Context, errMsg string) {
	c.JSON(http.StatusOK, Response{Success: false, Error: errMsg})
}

// BadRequest отправляет ошибку валидации (HTTP 400).
// Caller не должен повторять такой запрос.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid_request", Message: message})
}

// InternalError отправляет внутреннюю ошибку (HTTP 500).
// Publisher воспринимает её как transient и повторит доставку.
func InternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal_error", Message: message})
}

// IdempotencyKey извлекает ключ идемпотентности из заголовка запроса.
// При отсутствии заголовка отправляет 400 и возвращает false.
func IdempotencyKey(c *gin.Context) (string, bool) {
	key := c.GetHeader(HeaderIdempotencyKey)
	if key == "" {
		BadRequest(c, "заголовок idempotency-key обязателен")
		return "", false
	}
	return key, true
}
