// checker - пакет для проверки корректности данных регистрации и авторизации пользователя.
package checker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// registration - правила проверки данных регистрации.
type registration struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=20"`
	Password string `json:"password" validate:"required"`
}

// validate - единственный экземпляр валидатора, он кэширует разобранные правила структур.
var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError - описание нарушенного правила для одного поля запроса.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidationError - ошибка проверки тела запроса. Сериализуется в ответ с кодом 400.
type ValidationError struct {
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	fields := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		fields = append(fields, fmt.Sprintf("%s(%s)", d.Field, d.Rule))
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(fields, ", "))
}

// NewValidationError - создает ошибку проверки без описания полей, например для нечитаемого тела запроса.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// NewUnknownFieldError - создает ошибку проверки для поля, которого нет в схеме запроса.
func NewUnknownFieldError(field string) *ValidationError {
	return &ValidationError{
		Message: fmt.Sprintf("%q is not allowed", field),
		Details: []FieldError{{Field: field, Rule: "unknown"}},
	}
}

// ValidateRegistration - проверяет имя пользователя (буквы и цифры, от 3 до 20 символов) и наличие пароля.
// В случае нарушения правил возвращается *ValidationError.
func ValidateRegistration(username, password string) error {
	err := validate.Struct(registration{Username: username, Password: password})
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate registration data error, %w", err)
	}

	verr := &ValidationError{Message: "registration data is not valid"}
	for _, fe := range fieldErrs {
		verr.Details = append(verr.Details, FieldError{
			Field: strings.ToLower(fe.Field()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return verr
}

// CheckLogin - функция для проверки наличия логина.
func CheckLogin(login string) bool {
	return login != ""
}

// CheckPassword - функция для проверки наличия пароля.
func CheckPassword(password string) bool {
	return password != ""
}
