package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/abezemskiy/blogauth/internal/common/identity/tools/checker"
	"github.com/abezemskiy/blogauth/internal/common/identity/tools/cookie"
	"github.com/abezemskiy/blogauth/internal/common/identity/tools/hasher"
	"github.com/abezemskiy/blogauth/internal/repositories/identity"
	"github.com/abezemskiy/blogauth/internal/server/identity/auth"
	"github.com/abezemskiy/blogauth/internal/server/logger"
	"github.com/abezemskiy/blogauth/internal/server/metrics"
	"go.uber.org/zap"
)

// unauthorizedMessage - единый ответ на любую ошибку авторизации.
// По ответу нельзя определить, существует ли пользователь и какое поле было неверным.
const unauthorizedMessage = "invalid username or password"

// CheckResponse - ответ на запрос проверки сессии.
type CheckResponse struct {
	Authenticated bool                 `json:"authenticated"`
	User          *identity.PublicUser `json:"user,omitempty"`
}

// Register - хэндлер для регистрации пользователя в системе. Если пользователь успешно зарегистрирован,
// в ответ возвращается представление пользователя, а токен сессии устанавливается в cookie.
func Register(res http.ResponseWriter, req *http.Request, ident identity.Identifier) {
	defer req.Body.Close()

	var regData identity.IdentityData
	dec := json.NewDecoder(req.Body)
	// тело регистрации может содержать только имя пользователя и пароль
	dec.DisallowUnknownFields()
	if err := dec.Decode(&regData); err != nil {
		logger.ServerLog.Info("failed to parse identity data to structure", zap.String("address", req.URL.String()), zap.String("error", err.Error()))
		metrics.RecordAuth(metrics.OperationRegister, metrics.ResultInvalid)
		if field, ok := unknownField(err); ok {
			writeJSON(res, req, http.StatusBadRequest, checker.NewUnknownFieldError(field))
			return
		}
		writeJSON(res, req, http.StatusBadRequest, checker.NewValidationError("request body must be a JSON object"))
		return
	}

	// Проверяю корректность имени пользователя и наличие пароля
	if err := checker.ValidateRegistration(regData.Username, regData.Password); err != nil {
		var verr *checker.ValidationError
		if !errors.As(err, &verr) {
			internalError(res, req, metrics.OperationRegister, "validate registration data error", err)
			return
		}
		logger.ServerLog.Info("registration data is not valid", zap.String("address", req.URL.String()), zap.String("error", verr.Error()))
		metrics.RecordAuth(metrics.OperationRegister, metrics.ResultInvalid)
		writeJSON(res, req, http.StatusBadRequest, verr)
		return
	}

	// Проверяю, не занято ли имя пользователя
	_, exists, err := ident.FindByUsername(req.Context(), regData.Username)
	if err != nil {
		internalError(res, req, metrics.OperationRegister, "find user error", err)
		return
	}
	if exists {
		conflict(res, req, regData.Username)
		return
	}

	user := identity.NewUser(regData.Username)
	if err := user.SetPassword(regData.Password); err != nil {
		internalError(res, req, metrics.OperationRegister, "set password error", err)
		return
	}

	// Регистрирую пользователя в хранилище. Хранилище повторно проверяет уникальность атомарно,
	// поэтому из двух одновременных регистраций успешной будет только одна.
	ok, err := ident.Register(req.Context(), user)
	if err != nil {
		internalError(res, req, metrics.OperationRegister, "register user error", err)
		return
	}
	if !ok {
		conflict(res, req, regData.Username)
		return
	}

	if !issueSession(res, req, metrics.OperationRegister, user) {
		return
	}
	metrics.RecordAuth(metrics.OperationRegister, metrics.ResultSuccess)
	logger.ServerLog.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	writeJSON(res, req, http.StatusOK, user.Serialize())
}

// RegisterHandler - обертка над функцией Register.
func RegisterHandler(ident identity.Identifier) http.HandlerFunc {
	fn := func(res http.ResponseWriter, req *http.Request) {
		Register(res, req, ident)
	}
	return fn
}

// Login - хэндлер для авторизации пользователя в системе. Если пароль верный, в ответ возвращается
// представление пользователя, а токен сессии устанавливается в cookie.
func Login(res http.ResponseWriter, req *http.Request, ident identity.Identifier) {
	defer req.Body.Close()

	var authData identity.IdentityData
	if err := json.NewDecoder(req.Body).Decode(&authData); err != nil {
		// нечитаемое тело обрабатываю так же, как отсутствующие логин и пароль
		logger.ServerLog.Debug("failed to parse identity data to structure", zap.String("address", req.URL.String()), zap.String("error", err.Error()))
		authData = identity.IdentityData{}
	}

	if !checker.CheckLogin(authData.Username) || !checker.CheckPassword(authData.Password) {
		unauthorized(res, req, "username or password is empty")
		return
	}

	// Получаю учетную запись пользователя из хранилища
	user, ok, err := ident.FindByUsername(req.Context(), authData.Username)
	if err != nil {
		internalError(res, req, metrics.OperationLogin, "find user error", err)
		return
	}
	if !ok {
		// сравниваю пароль с фиктивным хэшем, чтобы время ответа не выдавало отсутствие пользователя
		compareDummy(authData.Password)
		unauthorized(res, req, "user is not registered")
		return
	}

	valid, err := user.CheckPassword(authData.Password)
	if err != nil {
		internalError(res, req, metrics.OperationLogin, "check password error", err)
		return
	}
	if !valid {
		unauthorized(res, req, "password is wrong")
		return
	}

	if !issueSession(res, req, metrics.OperationLogin, &user) {
		return
	}
	metrics.RecordAuth(metrics.OperationLogin, metrics.ResultSuccess)
	logger.ServerLog.Debug("user logged in", zap.String("user_id", user.ID))
	writeJSON(res, req, http.StatusOK, user.Serialize())
}

// LoginHandler - обертка над функцией Login.
func LoginHandler(ident identity.Identifier) http.HandlerFunc {
	fn := func(res http.ResponseWriter, req *http.Request) {
		Login(res, req, ident)
	}
	return fn
}

// Check - хэндлер для проверки состояния сессии. Утверждения токена устанавливает auth.Middleware.
// Отсутствие или недействительность токена не является ошибкой, пользователь просто не аутентифицирован.
func Check(res http.ResponseWriter, req *http.Request) {
	claims, ok := auth.ClaimsFromContext(req.Context())
	if !ok {
		metrics.RecordAuth(metrics.OperationCheck, metrics.ResultAnonymous)
		writeJSON(res, req, http.StatusOK, CheckResponse{Authenticated: false})
		return
	}

	metrics.RecordAuth(metrics.OperationCheck, metrics.ResultSuccess)
	writeJSON(res, req, http.StatusOK, CheckResponse{
		Authenticated: true,
		User: &identity.PublicUser{
			ID:       claims.UserID,
			Username: claims.Username,
		},
	})
}

// CheckHandler - обертка над функцией Check.
func CheckHandler() http.HandlerFunc {
	return Check
}

// Logout - хэндлер для завершения сессии. Удаляет cookie с токеном.
func Logout(res http.ResponseWriter, _ *http.Request) {
	cookie.Clear(res)
	metrics.RecordAuth(metrics.OperationLogout, metrics.ResultSuccess)
	res.WriteHeader(http.StatusOK)
}

// LogoutHandler - обертка над функцией Logout.
func LogoutHandler() http.HandlerFunc {
	return Logout
}

// HandleOtherRequest - обработка нераспознанных http запросов к сервису.
func HandleOtherRequest() http.HandlerFunc {
	return func(res http.ResponseWriter, _ *http.Request) {
		res.Header().Set("Content-Type", "text/plain")
		res.WriteHeader(http.StatusNotFound)
	}
}

// issueSession - выпускает токен пользователя и устанавливает его в cookie.
// Возвращает false, если ответ с ошибкой уже отправлен.
func issueSession(res http.ResponseWriter, req *http.Request, operation string, user *identity.User) bool {
	tok, err := user.GenerateToken()
	if err != nil {
		internalError(res, req, operation, "build JWT error", err)
		return false
	}
	cookie.SetToken(res, tok)
	return true
}

// dummyPassword - пароль фиктивного хэша, с которым сравниваются пароли неизвестных пользователей.
const dummyPassword = "dummy password for unknown users"

// dummyHash - фиктивный хэш, построенный со стоимостью хэширования сервера.
var dummyHash atomic.Pointer[[]byte]

// PrepareDummyHash - строит фиктивный хэш для входа неизвестных пользователей.
// Вызывается при старте сервера после установки стоимости хэширования.
func PrepareDummyHash() error {
	hashed, err := hasher.Hash(dummyPassword)
	if err != nil {
		return fmt.Errorf("failed to build dummy hash, %w", err)
	}
	dummyHash.Store(&hashed)
	return nil
}

// compareDummy - выполняет проверку пароля, сопоставимую по времени с проверкой существующего пользователя.
func compareDummy(password string) {
	hashed := dummyHash.Load()
	if hashed == nil {
		// хэш не подготовлен при старте: одно хэширование стоит столько же, сколько одна проверка
		logger.ServerLog.Warn("dummy hash is not prepared")
		_, _ = hasher.Hash(password)
		return
	}
	_, _ = hasher.Verify(password, *hashed)
}

func unauthorized(res http.ResponseWriter, req *http.Request, reason string) {
	logger.ServerLog.Info("authentication failed", zap.String("address", req.URL.String()), zap.String("reason", reason))
	metrics.RecordAuth(metrics.OperationLogin, metrics.ResultUnauthorized)
	http.Error(res, unauthorizedMessage, http.StatusUnauthorized)
}

func conflict(res http.ResponseWriter, req *http.Request, username string) {
	logger.ServerLog.Info("username already exists", zap.String("address", req.URL.String()), zap.String("username", username))
	metrics.RecordAuth(metrics.OperationRegister, metrics.ResultConflict)
	res.WriteHeader(http.StatusConflict)
}

// internalError - подробности ошибки пишутся в лог для оператора, клиент получает только статус.
func internalError(res http.ResponseWriter, req *http.Request, operation, msg string, err error) {
	logger.ServerLog.Error(msg, zap.String("address", req.URL.String()), zap.String("operation", operation), zap.String("error", err.Error()))
	metrics.RecordAuth(operation, metrics.ResultError)
	http.Error(res, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// unknownField - возвращает имя лишнего поля из ошибки декодера с DisallowUnknownFields.
func unknownField(err error) (string, bool) {
	const prefix = "json: unknown field "
	msg := err.Error()
	if !strings.HasPrefix(msg, prefix) {
		return "", false
	}
	field, unquoteErr := strconv.Unquote(strings.TrimPrefix(msg, prefix))
	if unquoteErr != nil {
		return "", false
	}
	return field, true
}

func writeJSON(res http.ResponseWriter, req *http.Request, status int, v any) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)
	if err := json.NewEncoder(res).Encode(v); err != nil {
		logger.ServerLog.Error("encoding response error", zap.String("address", req.URL.String()), zap.String("error", err.Error()))
	}
}
