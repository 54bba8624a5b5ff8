// auth - пакет, который реализует middleware для определения пользователя по cookie сессии.
package auth

import (
	"context"
	"net/http"

	"github.com/abezemskiy/blogauth/internal/common/identity/tools/cookie"
	"github.com/abezemskiy/blogauth/internal/common/identity/tools/token"
	"github.com/abezemskiy/blogauth/internal/server/logger"
	"go.uber.org/zap"
)

type contextKey string

// ClaimsKey - ключ для установки утверждений токена в контекст.
const ClaimsKey = contextKey("claims")

// Middleware - проверяет токен из cookie входящего запроса.
// Если токен действителен, его утверждения устанавливаются в контекст.
// Отсутствующий или недействительный токен не прерывает запрос: пользователь считается анонимным.
func Middleware(h http.Handler) http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		tok, err := cookie.GetToken(req)
		if err != nil {
			// cookie нет - обычный анонимный запрос
			h.ServeHTTP(res, req)
			return
		}

		claims, err := token.Verify(tok)
		if err != nil {
			logger.ServerLog.Debug("session token rejected", zap.String("address", req.URL.String()), zap.String("error", err.Error()))
			h.ServeHTTP(res, req)
			return
		}

		ctx := context.WithValue(req.Context(), ClaimsKey, claims)
		h.ServeHTTP(res, req.WithContext(ctx))
	}
}

// ClaimsFromContext - возвращает утверждения токена, установленные Middleware.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*token.Claims)
	return claims, ok && claims != nil
}
