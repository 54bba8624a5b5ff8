// token - пакет для выпуска и проверки подписанных JWT сессии пользователя.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Секретный ключ для подписи JWT.
var secretKey string

// SetSecretKey - функция для установки секретного ключа для подписи JWT.
func SetSecretKey(newKey string) {
	secretKey = newKey
}

// expire - время действия токена. По умолчанию семь дней.
var expire = 7 * 24 * time.Hour

// SetExpireHour - функция для установки времени действия токена в часах.
func SetExpireHour(hours int) {
	expire = time.Hour * time.Duration(hours)
}

// GetExpire - функция для получения времени действия токена.
func GetExpire() time.Duration {
	return expire
}

// now - источник текущего времени. Переопределяется в тестах.
var now = time.Now

// Claims - структура утверждений, которая включает стандартные утверждения (iat, exp)
// и пользовательские: идентификатор и имя пользователя.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Reason - причина отказа в проверке токена.
type Reason int

const (
	Malformed Reason = iota + 1
	BadSignature
	Expired
)

var (
	ErrMalformed    = errors.New("token is malformed")
	ErrBadSignature = errors.New("token signature is invalid")
	ErrExpired      = errors.New("token is expired")
)

// VerificationError - ошибка проверки токена с указанием причины.
type VerificationError struct {
	Reason Reason
	Err    error
}

func (e *VerificationError) sentinel() error {
	switch e.Reason {
	case Expired:
		return ErrExpired
	case BadSignature:
		return ErrBadSignature
	default:
		return ErrMalformed
	}
}

func (e *VerificationError) Error() string {
	if e.Err == nil {
		return e.sentinel().Error()
	}
	return fmt.Sprintf("%v, %v", e.sentinel(), e.Err)
}

// Unwrap позволяет сравнивать ошибку через errors.Is с ErrMalformed, ErrBadSignature и ErrExpired.
func (e *VerificationError) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

// Issue - создает подписанный токен с переданными утверждениями и временем истечения now + ttl.
// В токене время хранится в целых секундах, поэтому время истечения округляется вверх:
// токен не может истечь раньше, чем пройдет ttl.
func Issue(claims Claims, ttl time.Duration) (string, error) {
	issuedAt := now()
	claims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.ExpiresAt = jwt.NewNumericDate(ceilSecond(issuedAt.Add(ttl)))

	// создаю токен с алгоритмом подписи HS256
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to signed JWT to string, %w", err)
	}
	return tokenString, nil
}

func ceilSecond(t time.Time) time.Time {
	truncated := t.Truncate(time.Second)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Second)
}

// BuildJWT - создает токен пользователя с установленным временем действия.
func BuildJWT(userID, username string) (string, error) {
	return Issue(Claims{UserID: userID, Username: username}, expire)
}

// Verify - проверяет подпись и срок действия токена и возвращает его утверждения.
// Подпись проверяется до разбора утверждений: содержимому неподписанного токена не доверяю.
func Verify(tokenStr string) (*Claims, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return nil, &VerificationError{Reason: Malformed, Err: fmt.Errorf("token contains %d segments", len(parts))}
	}

	// срок действия проверяю сам: токен истек, только если текущее время позже exp
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)

	sig, err := parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, &VerificationError{Reason: BadSignature, Err: err}
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, []byte(secretKey)); err != nil {
		return nil, &VerificationError{Reason: BadSignature, Err: err}
	}

	claims := &Claims{}
	_, err = parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, &VerificationError{Reason: Malformed, Err: err}
	}
	if claims.ExpiresAt == nil {
		return nil, &VerificationError{Reason: Malformed, Err: jwt.ErrTokenRequiredClaimMissing}
	}
	if now().After(claims.ExpiresAt.Time) {
		return nil, &VerificationError{Reason: Expired, Err: jwt.ErrTokenExpired}
	}
	return claims, nil
}
