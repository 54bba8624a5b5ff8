// inmemory - потокобезопасное хранилище пользователей в оперативной памяти.
// Используется, если адрес базы данных не задан.
package inmemory

import (
	"context"
	"strconv"
	"sync"

	"github.com/abezemskiy/blogauth/internal/repositories/identity"
)

// Store - реализует интерфейс storage.IUserStorage.
type Store struct {
	mu     sync.RWMutex
	users  map[string]identity.User // ключ - имя пользователя
	lastID int64
}

// NewStore - возвращает пустое хранилище.
func NewStore() *Store {
	return &Store{
		users: make(map[string]identity.User),
	}
}

// FindByUsername - возвращает копию пользователя по имени.
func (s *Store) FindByUsername(ctx context.Context, username string) (identity.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return identity.User{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return identity.User{}, false, nil
	}
	return copyUser(user), true, nil
}

// Register - проверка уникальности имени и добавление пользователя выполняются под одной блокировкой.
// При успехе пользователю назначается следующий по порядку идентификатор.
func (s *Store) Register(ctx context.Context, user *identity.User) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return false, nil
	}
	s.lastID++
	user.ID = strconv.FormatInt(s.lastID, 10)
	s.users[user.Username] = copyUser(*user)
	return true, nil
}

// Close - хранилищу в памяти нечего освобождать.
func (s *Store) Close() error {
	return nil
}

func copyUser(u identity.User) identity.User {
	hashed := make([]byte, len(u.HashedPassword))
	copy(hashed, u.HashedPassword)
	u.HashedPassword = hashed
	return u
}
