package pg

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"

	"github.com/abezemskiy/blogauth/internal/repositories/identity"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store - реализует интерфейс storage.IUserStorage и позволяет взаимодествовать с СУБД PostgreSQL.
type Store struct {
	// Поле conn содержит объект соединения с СУБД
	conn *sql.DB
}

// NewStore - применяет миграции и возвращает новый экземпляр PostgreSQL-хранилища.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if err := runMigrations(dsn); err != nil {
		return nil, fmt.Errorf("failed to run DB migrations: %w", err)
	}

	// Подключение к базе данных
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("error connection to database: %w", err)
	}

	// Проверка соединения с БД
	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error checking connection with database: %w", err)
	}

	return &Store{
		conn: db,
	}, nil
}

//go:embed migrations/*.sql
var migrationsDir embed.FS

func runMigrations(dsn string) error {
	d, err := iofs.New(migrationsDir, "migrations")
	if err != nil {
		return fmt.Errorf("failed to return an iofs driver: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, dsn)
	if err != nil {
		return fmt.Errorf("failed to get a new migrate instance: %w", err)
	}
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to apply migrations to the DB: %w", err)
		}
	}
	return nil
}

// Close - закрывает соединение с СУБД.
func (s Store) Close() error {
	return s.conn.Close()
}

// Disable - очищает БД, удаляя записи из таблиц и сбрасывая счетчик идентификаторов.
// Метод необходим для тестирования, чтобы в процессе удалять тестовые записи.
func (s Store) Disable(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `TRUNCATE TABLE users RESTART IDENTITY`)
	if err != nil {
		return fmt.Errorf("truncate table users error, %w", err)
	}
	return nil
}

// Register - сохраняет в базу нового пользователя и устанавливает ему идентификатор, назначенный СУБД.
// Уникальность имени гарантирует ограничение UNIQUE, поэтому проверка и вставка атомарны.
// Если такой пользователь уже зарегистрирован, вернется false.
func (s Store) Register(ctx context.Context, user *identity.User) (bool, error) {
	query := `
		INSERT INTO users (username, hashed_password)
		VALUES ($1, $2)
		RETURNING id
	`
	var id int64
	err := s.conn.QueryRowContext(ctx, query, user.Username, user.HashedPassword).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			// пользователь с таким именем уже зарегистрирован
			return false, nil
		}
		return false, fmt.Errorf("query execution error, %w", err)
	}

	user.ID = strconv.FormatInt(id, 10)
	return true, nil
}

// FindByUsername - получаю учетную запись пользователя по имени.
// Если пользователь не найден, возвращается false без ошибки.
func (s Store) FindByUsername(ctx context.Context, username string) (identity.User, bool, error) {
	query := `
		SELECT  id,
				hashed_password
		FROM users
		WHERE username = $1
	`
	var (
		id     int64
		hashed []byte
	)
	err := s.conn.QueryRowContext(ctx, query, username).Scan(&id, &hashed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity.User{}, false, nil
		}
		return identity.User{}, false, fmt.Errorf("query execution error, %w", err)
	}

	return identity.User{
		ID:             strconv.FormatInt(id, 10),
		Username:       username,
		HashedPassword: hashed,
	}, true, nil
}
