//go:generate mockgen -source=identity.go -destination=../mocks/mock_identity.go -package=mocks

package identity

import (
	"context"
	"fmt"

	"github.com/abezemskiy/blogauth/internal/common/identity/tools/hasher"
	"github.com/abezemskiy/blogauth/internal/common/identity/tools/token"
)

// Identifier - интерфейс хранилища пользователей для процедур регистрации и авторизации.
type Identifier interface {
	// FindByUsername - поиск пользователя по имени. Если пользователь не найден, ok == false.
	FindByUsername(ctx context.Context, username string) (user User, ok bool, err error)
	// Register - атомарно сохраняет нового пользователя и устанавливает ему идентификатор.
	// Если имя пользователя уже занято, возвращается ok == false.
	Register(ctx context.Context, user *User) (ok bool, err error)
}

// IdentityData - тело запроса регистрации и авторизации пользователя.
type IdentityData struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// User - учетная запись пользователя.
type User struct {
	ID             string
	Username       string
	HashedPassword []byte `json:"-"` // никогда не передается клиенту и не пишется в лог
}

// PublicUser - представление пользователя для ответа клиенту.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// NewUser - создает пользователя с указанным именем. Идентификатор назначает хранилище.
func NewUser(username string) *User {
	return &User{Username: username}
}

// SetPassword - хэширует пароль и сохраняет хэш в пользователе.
func (u *User) SetPassword(password string) error {
	hashed, err := hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("set password error, %w", err)
	}
	u.HashedPassword = hashed
	return nil
}

// CheckPassword - проверяет пароль по сохраненному хэшу.
func (u *User) CheckPassword(password string) (bool, error) {
	return hasher.Verify(password, u.HashedPassword)
}

// Serialize - возвращает представление пользователя без хэша пароля.
// Поля переносятся по одному, чтобы новые поля User не попадали в ответ незаметно.
func (u *User) Serialize() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
	}
}

// GenerateToken - выпускает токен сессии пользователя.
func (u *User) GenerateToken() (string, error) {
	return token.BuildJWT(u.ID, u.Username)
}
