package storage

import (
	"github.com/abezemskiy/blogauth/internal/repositories/identity"
)

type (
	// Closer - интерфейс для освобождения ресурсов хранилища.
	Closer interface {
		Close() error
	}

	// IUserStorage - интерфейс сервера для хранения учетных записей пользователей.
	IUserStorage interface {
		identity.Identifier
		Closer
	}
)
