package logger

import (
	"net/http"
	"time"

	"github.com/abezemskiy/blogauth/internal/common/tools/id"
	"go.uber.org/zap"
)

// ServerLog будет доступен всему коду как синглтон.
// Никакой код, кроме функции Initialize, не должен модифицировать эту переменную.
// По умолчанию установлен no-op-логер, который не выводит никаких сообщений.
var ServerLog *zap.Logger = zap.NewNop()

// RequestIDHeader - заголовок ответа с идентификатором запроса.
const RequestIDHeader = "X-Request-ID"

// Initialize - инициализирует синглтон логера с необходимым уровнем логирования.
func Initialize(level string) error {
	// преобразуем текстовый уровень логирования в zap.AtomicLevel
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}
	// создаём новую конфигурацию логера
	cfg := zap.NewProductionConfig()
	// устанавливаем уровень
	cfg.Level = lvl
	// создаём логер на основе конфигурации
	zl, err := cfg.Build()
	if err != nil {
		return err
	}
	// устанавливаем синглтон
	ServerLog = zl.With(zap.String("role", "server"))
	return nil
}

type (
	// responseData - данные об ответе сервера.
	responseData struct {
		status int
		size   int
	}

	// loggingResponseWriter - реализация http.ResponseWriter, запоминающая код и размер ответа.
	loggingResponseWriter struct {
		http.ResponseWriter
		responseData *responseData
	}
)

func (r *loggingResponseWriter) Write(b []byte) (int, error) {
	// записываем ответ, используя оригинальный http.ResponseWriter
	size, err := r.ResponseWriter.Write(b)
	r.responseData.size += size // захватываем размер
	return size, err
}

func (r *loggingResponseWriter) WriteHeader(statusCode int) {
	// записываем код статуса, используя оригинальный http.ResponseWriter
	r.ResponseWriter.WriteHeader(statusCode)
	r.responseData.status = statusCode // захватываем код статуса
}

// RequestLogger - middleware-логер для входящих HTTP-запросов.
// Каждому запросу назначается идентификатор, который возвращается клиенту в заголовке X-Request-ID.
func RequestLogger(h http.HandlerFunc) http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		start := time.Now()

		requestID, err := id.GenerateID()
		if err != nil {
			ServerLog.Warn("failed to generate request id", zap.String("error", err.Error()))
		} else {
			res.Header().Set(RequestIDHeader, requestID)
		}

		// код по умолчанию, если обработчик не вызвал WriteHeader
		responseData := &responseData{
			status: http.StatusOK,
		}
		lw := loggingResponseWriter{
			ResponseWriter: res,
			responseData:   responseData,
		}
		h.ServeHTTP(&lw, req)

		ServerLog.Info("got incoming HTTP request",
			zap.String("request_id", requestID),
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", responseData.status),
			zap.Int("size", responseData.size),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
