// cookie - пакет для передачи токена сессии в HTTP-only cookie.
package cookie

import (
	"fmt"
	"net/http"
	"time"
)

// AccessTokenName - имя cookie с токеном пользователя.
const AccessTokenName = "access_token"

// maxAge - время жизни cookie.
const maxAge = 7 * 24 * time.Hour

// SetToken - функция для установки токена в cookie ответа.
func SetToken(res http.ResponseWriter, token string) {
	http.SetCookie(res, &http.Cookie{
		Name:     AccessTokenName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear - функция для удаления cookie с токеном на стороне клиента.
func Clear(res http.ResponseWriter) {
	http.SetCookie(res, &http.Cookie{
		Name:     AccessTokenName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetToken - функция для получения токена из cookie запроса.
// Отсутствие cookie или пустое значение возвращается как ошибка.
func GetToken(req *http.Request) (string, error) {
	c, err := req.Cookie(AccessTokenName)
	if err != nil {
		return "", fmt.Errorf("missing %s cookie, %w", AccessTokenName, err)
	}
	if c.Value == "" {
		return "", fmt.Errorf("empty %s cookie", AccessTokenName)
	}
	return c.Value, nil
}

// GetTokenFromResponse извлекает токен из cookie в ответе сервера.
// Необходима для тестирования хэндлеров сервера, имитирует получение токена клиентом.
func GetTokenFromResponse(res *http.Response) (string, error) {
	for _, c := range res.Cookies() {
		if c.Name == AccessTokenName && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", fmt.Errorf("missing %s cookie", AccessTokenName)
}
