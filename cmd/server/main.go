package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abezemskiy/blogauth/internal/repositories/identity"
	"github.com/abezemskiy/blogauth/internal/server/handlers"
	"github.com/abezemskiy/blogauth/internal/server/identity/auth"
	"github.com/abezemskiy/blogauth/internal/server/logger"
	"github.com/abezemskiy/blogauth/internal/server/metrics"
	"github.com/abezemskiy/blogauth/internal/server/storage"
	"github.com/abezemskiy/blogauth/internal/server/storage/inmemory"
	"github.com/abezemskiy/blogauth/internal/server/storage/pg"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const shutdownWaitPeriod = 20 * time.Second // для установки в контекст для реализации graceful shutdown

func main() {
	err := parseVariables()
	if err != nil {
		log.Fatalf("failed to set global variables, %v", err)
	}

	// Инициализация логера
	if err := logger.Initialize(logLevel); err != nil {
		log.Fatalf("Error starting server: %v", err)
	}
	defer logger.ServerLog.Sync()

	ctx := context.Background()
	stor, err := newStorage(ctx, databaseDsn)
	if err != nil {
		log.Fatalf("Failed to create storage: %v\n", err)
	}
	defer stor.Close()

	run(ctx, stor)
}

// newStorage - создает хранилище PostgreSQL, если задан адрес базы данных, иначе хранилище в памяти.
func newStorage(ctx context.Context, dsn string) (storage.IUserStorage, error) {
	if dsn == "" {
		logger.ServerLog.Warn("database address is not set, users are stored in memory")
		return inmemory.NewStore(), nil
	}
	return pg.NewStore(ctx, dsn)
}

// функция run запускает сервер и ожидает сигнала для graceful shutdown
func run(ctx context.Context, stor storage.IUserStorage) {
	logger.ServerLog.Info("Running blog auth server", zap.String("address", netAddr))

	srv := &http.Server{
		Addr:    netAddr,
		Handler: AuthRouter(stor),
	}
	// Канал для получения сигнала прерывания
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Горутина для запуска сервера
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	// Блокирование до тех пор, пока не поступит сигнал о прерывании
	<-quit
	logger.ServerLog.Info("Shutting down server...", zap.String("address", netAddr))

	ctx, cancel := context.WithTimeout(ctx, shutdownWaitPeriod)
	defer cancel()

	// останавливаю сервер, чтобы он перестал принимать новые запросы
	if err := srv.Shutdown(ctx); err != nil {
		logger.ServerLog.Error("Stopping server error", zap.String("error", err.Error()))
		return
	}

	logger.ServerLog.Info("Shutdown the server gracefully", zap.String("address", netAddr))
}

// AuthRouter - дирижирует обработку http запросов к серверу.
func AuthRouter(ident identity.Identifier) chi.Router {
	r := chi.NewRouter()

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", logger.RequestLogger(handlers.RegisterHandler(ident)))
		r.Post("/login", logger.RequestLogger(handlers.LoginHandler(ident)))
		r.Get("/check", logger.RequestLogger(auth.Middleware(handlers.CheckHandler())))
		r.Post("/logout", logger.RequestLogger(handlers.LogoutHandler()))
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Определяем маршрут по умолчанию для некорректных запросов
	r.NotFound(logger.RequestLogger(handlers.HandleOtherRequest()))

	return r
}
