// hasher - пакет со вспомогательными функциями для хэширования паролей пользователей.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// cost - стоимость хэширования bcrypt. Устанавливается один раз при старте сервера.
var cost = bcrypt.DefaultCost

// SetCost - функция для установки стоимости хэширования.
// При некорректном значении устанавливается стоимость по умолчанию.
func SetCost(newCost int) {
	if newCost < bcrypt.MinCost || newCost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
		return
	}
	cost = newCost
}

// GetCost - функция для получения текущей стоимости хэширования.
func GetCost() int {
	return cost
}

// HashingError - ошибка хэширования или проверки пароля.
type HashingError struct {
	Op  string
	Err error
}

func (e *HashingError) Error() string {
	return fmt.Sprintf("%s password error, %v", e.Op, e.Err)
}

func (e *HashingError) Unwrap() error {
	return e.Err
}

// CalkHash - функция, которая хэширует переданную строку алгоритмом SHA-256 и возвращает хэш в виде hex строки.
func CalkHash(data string) (string, error) {
	src := []byte(data)

	h := sha256.New()
	n, err := h.Write(src)
	if err != nil {
		return "", fmt.Errorf("conveing bytes for hashing error, %w", err)
	}
	if n != len(src) {
		return "", fmt.Errorf("count of wrote bytes not equal initial count of bytes")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Hash - функция для получения соленого хэша пароля.
// Пароль предварительно хэшируется SHA-256, чтобы bcrypt не отбрасывал байты после 72-го.
func Hash(password string) ([]byte, error) {
	pre, err := CalkHash(password)
	if err != nil {
		return nil, &HashingError{Op: "hash", Err: err}
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(pre), cost)
	if err != nil {
		return nil, &HashingError{Op: "hash", Err: err}
	}
	return hashed, nil
}

// Verify - функция для проверки пароля по сохраненному хэшу.
// Несовпадение пароля не является ошибкой, ошибка возвращается только для некорректного хэша.
func Verify(password string, hashed []byte) (bool, error) {
	pre, err := CalkHash(password)
	if err != nil {
		return false, &HashingError{Op: "verify", Err: err}
	}
	err = bcrypt.CompareHashAndPassword(hashed, []byte(pre))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, &HashingError{Op: "verify", Err: err}
}
