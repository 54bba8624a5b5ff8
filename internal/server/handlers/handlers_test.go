package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/abezemskiy/blogauth/internal/common/identity/tools/checker"
	"github.com/abezemskiy/blogauth/internal/common/identity/tools/cookie"
	"github.com/abezemskiy/blogauth/internal/common/identity/tools/hasher"
	"github.com/abezemskiy/blogauth/internal/common/identity/tools/token"
	"github.com/abezemskiy/blogauth/internal/repositories/identity"
	"github.com/abezemskiy/blogauth/internal/repositories/mocks"
	"github.com/abezemskiy/blogauth/internal/server/identity/auth"
	"github.com/abezemskiy/blogauth/internal/server/storage/inmemory"
	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	// устанавливаю секретный ключ для подписи токена и минимальную стоимость хэширования
	token.SetSecretKey("test key")
	token.SetExpireHour(1)
	hasher.SetCost(bcrypt.MinCost)
	if err := PrepareDummyHash(); err != nil {
		log.Fatal(err)
	}
	os.Exit(m.Run())
}

func TestPrepareDummyHash(t *testing.T) {
	defer func() {
		require.NoError(t, PrepareDummyHash())
	}()

	hasher.SetCost(bcrypt.MinCost + 1)
	defer hasher.SetCost(bcrypt.MinCost)

	require.NoError(t, PrepareDummyHash())
	hashed := dummyHash.Load()
	require.NotNil(t, hashed)

	// хэш построен с текущей стоимостью хэширования
	cost, err := bcrypt.Cost(*hashed)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)

	ok, err := hasher.Verify(dummyPassword, *hashed)
	require.NoError(t, err)
	assert.True(t, ok)

	// без подготовленного хэша проверка все равно выполняет работу хэширования
	dummyHash.Store(nil)
	compareDummy("some password")
	assert.Nil(t, dummyHash.Load())
}

// doRequest - вспомогательная функция для выполнения запроса к тестовому роутеру.
func doRequest(t *testing.T, h http.HandlerFunc, method string, body []byte, cookies ...*http.Cookie) (*http.Response, []byte) {
	t.Helper()

	r := chi.NewRouter()
	r.MethodFunc(method, "/test", h)

	request := httptest.NewRequest(method, "/test", bytes.NewBuffer(body))
	for _, c := range cookies {
		request.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, request)

	res := w.Result()
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, resBody
}

// usernameIs - матчер gomock для пользователя с указанным именем.
type usernameIs string

func (u usernameIs) Matches(x interface{}) bool {
	user, ok := x.(*identity.User)
	return ok && user.Username == string(u)
}

func (u usernameIs) String() string {
	return "user with username " + string(u)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// registeredUser - вспомогательная функция для создания пользователя с захэшированным паролем.
func registeredUser(t *testing.T, id, username, password string) identity.User {
	t.Helper()
	user := identity.NewUser(username)
	require.NoError(t, user.SetPassword(password))
	user.ID = id
	return *user
}

func TestRegister(t *testing.T) {
	// регистрирую мок хранилища данных пользователей
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := mocks.NewMockIdentifier(ctrl)

	// Test. success register---------------------------------------------------------
	successBody := mustMarshal(t, identity.IdentityData{Username: "gyu", Password: "mypass123"})
	m.EXPECT().FindByUsername(gomock.Any(), "gyu").Return(identity.User{}, false, nil)
	m.EXPECT().Register(gomock.Any(), usernameIs("gyu")).DoAndReturn(func(_ context.Context, user *identity.User) (bool, error) {
		assert.Equal(t, "gyu", user.Username)
		ok, err := hasher.Verify("mypass123", user.HashedPassword)
		assert.NoError(t, err)
		assert.True(t, ok)
		user.ID = "1"
		return true, nil
	})

	// Test. user already register------------------------------------------------------------
	alreadyBody := mustMarshal(t, identity.IdentityData{Username: "already", Password: "pass"})
	m.EXPECT().FindByUsername(gomock.Any(), "already").Return(identity.User{ID: "5", Username: "already"}, true, nil)

	// Test. user registered concurrently between lookup and insert ---------------------------
	raceBody := mustMarshal(t, identity.IdentityData{Username: "race", Password: "pass"})
	m.EXPECT().FindByUsername(gomock.Any(), "race").Return(identity.User{}, false, nil)
	m.EXPECT().Register(gomock.Any(), usernameIs("race")).Return(false, nil)

	// Test. lookup error (internal server error) ------------------------------------------------------------
	lookupBody := mustMarshal(t, identity.IdentityData{Username: "lookup", Password: "pass"})
	m.EXPECT().FindByUsername(gomock.Any(), "lookup").Return(identity.User{}, false, errors.New("store unavailable"))

	// Test. register error (internal server error) ------------------------------------------------------------
	internalBody := mustMarshal(t, identity.IdentityData{Username: "internal", Password: "pass"})
	m.EXPECT().FindByUsername(gomock.Any(), "internal").Return(identity.User{}, false, nil)
	m.EXPECT().Register(gomock.Any(), usernameIs("internal")).Return(false, errors.New("some error"))

	type want struct {
		status int
		body   string
		rules  []string
	}
	tests := []struct {
		name string
		body []byte
		want want
	}{
		{
			name: "success register",
			body: successBody,
			want: want{status: 200, body: `{"id":"1","username":"gyu"}`},
		},
		{
			name: "user already register",
			body: alreadyBody,
			want: want{status: 409},
		},
		{
			name: "user registered concurrently",
			body: raceBody,
			want: want{status: 409},
		},
		{
			name: "lookup error",
			body: lookupBody,
			want: want{status: 500},
		},
		{
			name: "internal server error while register",
			body: internalBody,
			want: want{status: 500},
		},
		{
			name: "bad body",
			body: []byte("bad body"),
			want: want{status: 400},
		},
		{
			name: "short username",
			body: mustMarshal(t, identity.IdentityData{Username: "ab", Password: "pass"}),
			want: want{status: 400, rules: []string{"min"}},
		},
		{
			name: "username is not alphanumeric",
			body: mustMarshal(t, identity.IdentityData{Username: "gyu kim", Password: "pass"}),
			want: want{status: 400, rules: []string{"alphanum"}},
		},
		{
			name: "missing password",
			body: mustMarshal(t, identity.IdentityData{Username: "gyu", Password: ""}),
			want: want{status: 400, rules: []string{"required"}},
		},
		{
			// лишние поля не допускаются, пользователь не создается
			name: "unknown field",
			body: []byte(`{"username":"gyu","password":"mypass123","admin":true}`),
			want: want{
				status: 400,
				body:   `{"message":"\"admin\" is not allowed","details":[{"field":"admin","rule":"unknown"}]}`,
				rules:  []string{"unknown"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, body := doRequest(t, RegisterHandler(m), http.MethodPost, tt.body)
			assert.Equal(t, tt.want.status, res.StatusCode)

			switch tt.want.status {
			case http.StatusOK:
				assert.JSONEq(t, tt.want.body, string(body))
				assert.NotContains(t, string(body), "assword")

				// проверяю корректность токена в cookie
				getToken, err := cookie.GetTokenFromResponse(res)
				require.NoError(t, err)
				claims, err := token.Verify(getToken)
				require.NoError(t, err)
				assert.Equal(t, "1", claims.UserID)
				assert.Equal(t, "gyu", claims.Username)
			case http.StatusBadRequest:
				var verr checker.ValidationError
				require.NoError(t, json.Unmarshal(body, &verr))
				assert.NotEmpty(t, verr.Message)
				if tt.want.body != "" {
					assert.JSONEq(t, tt.want.body, string(body))
				}
				for i, rule := range tt.want.rules {
					require.Greater(t, len(verr.Details), i)
					assert.Equal(t, rule, verr.Details[i].Rule)
				}
				_, err := cookie.GetTokenFromResponse(res)
				require.Error(t, err)
			default:
				_, err := cookie.GetTokenFromResponse(res)
				require.Error(t, err)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	stor := inmemory.NewStore()
	gyu := identity.NewUser("gyu")
	require.NoError(t, gyu.SetPassword("mypass123"))
	ok, err := stor.Register(context.Background(), gyu)
	require.NoError(t, err)
	require.True(t, ok)

	type want struct {
		status int
		id     string
	}
	tests := []struct {
		name string
		body []byte
		want want
	}{
		{
			name: "success authorization",
			body: mustMarshal(t, identity.IdentityData{Username: "gyu", Password: "mypass123"}),
			want: want{status: 200, id: gyu.ID},
		},
		{
			name: "wrong password",
			body: mustMarshal(t, identity.IdentityData{Username: "gyu", Password: "wrong"}),
			want: want{status: 401},
		},
		{
			name: "user not register",
			body: mustMarshal(t, identity.IdentityData{Username: "nobody", Password: "mypass123"}),
			want: want{status: 401},
		},
		{
			name: "empty username",
			body: mustMarshal(t, identity.IdentityData{Username: "", Password: "mypass123"}),
			want: want{status: 401},
		},
		{
			name: "empty password",
			body: mustMarshal(t, identity.IdentityData{Username: "gyu", Password: ""}),
			want: want{status: 401},
		},
		{
			name: "missing fields",
			body: []byte(`{}`),
			want: want{status: 401},
		},
		{
			name: "bad body",
			body: []byte("bad body"),
			want: want{status: 401},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, body := doRequest(t, LoginHandler(stor), http.MethodPost, tt.body)
			assert.Equal(t, tt.want.status, res.StatusCode)

			if tt.want.status == http.StatusOK {
				assert.JSONEq(t, `{"id":"`+tt.want.id+`","username":"gyu"}`, string(body))

				getToken, err := cookie.GetTokenFromResponse(res)
				require.NoError(t, err)
				claims, err := token.Verify(getToken)
				require.NoError(t, err)
				assert.Equal(t, tt.want.id, claims.UserID)
				return
			}
			assert.Equal(t, unauthorizedMessage+"\n", string(body))
			_, err := cookie.GetTokenFromResponse(res)
			require.Error(t, err)
		})
	}
}

func TestLoginInternalError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := mocks.NewMockIdentifier(ctrl)

	// ошибка хранилища
	m.EXPECT().FindByUsername(gomock.Any(), "broken").Return(identity.User{}, false, errors.New("get data error"))
	// в хранилище поврежденный хэш
	m.EXPECT().FindByUsername(gomock.Any(), "corrupted").Return(identity.User{ID: "3", Username: "corrupted", HashedPassword: []byte("bad hash")}, true, nil)

	for _, username := range []string{"broken", "corrupted"} {
		t.Run(username, func(t *testing.T) {
			body := mustMarshal(t, identity.IdentityData{Username: username, Password: "pass"})
			res, resBody := doRequest(t, LoginHandler(m), http.MethodPost, body)
			assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
			// подробности ошибки клиенту не передаются
			assert.NotContains(t, string(resBody), "error")
		})
	}
}

func TestLoginUnauthorizedResponsesIdentical(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := mocks.NewMockIdentifier(ctrl)

	m.EXPECT().FindByUsername(gomock.Any(), "gyu").Return(registeredUser(t, "1", "gyu", "mypass123"), true, nil)
	m.EXPECT().FindByUsername(gomock.Any(), "nobody").Return(identity.User{}, false, nil)

	wrongRes, wrongBody := doRequest(t, LoginHandler(m), http.MethodPost,
		mustMarshal(t, identity.IdentityData{Username: "gyu", Password: "wrong"}))
	unknownRes, unknownBody := doRequest(t, LoginHandler(m), http.MethodPost,
		mustMarshal(t, identity.IdentityData{Username: "nobody", Password: "wrong"}))
	emptyRes, emptyBody := doRequest(t, LoginHandler(m), http.MethodPost,
		mustMarshal(t, identity.IdentityData{Username: "gyu"}))

	assert.Equal(t, http.StatusUnauthorized, wrongRes.StatusCode)
	assert.Equal(t, wrongRes.StatusCode, unknownRes.StatusCode)
	assert.Equal(t, wrongRes.StatusCode, emptyRes.StatusCode)
	assert.Equal(t, wrongBody, unknownBody)
	assert.Equal(t, wrongBody, emptyBody)
	assert.Equal(t, wrongRes.Header, unknownRes.Header)
	assert.Equal(t, wrongRes.Header, emptyRes.Header)
}

func TestCheck(t *testing.T) {
	valid, err := token.BuildJWT("1", "gyu")
	require.NoError(t, err)

	tests := []struct {
		name   string
		cookie *http.Cookie
		want   CheckResponse
	}{
		{
			name:   "authenticated",
			cookie: &http.Cookie{Name: cookie.AccessTokenName, Value: valid},
			want:   CheckResponse{Authenticated: true, User: &identity.PublicUser{ID: "1", Username: "gyu"}},
		},
		{
			name: "anonymous",
			want: CheckResponse{Authenticated: false},
		},
		{
			name:   "forged token",
			cookie: &http.Cookie{Name: cookie.AccessTokenName, Value: valid[:len(valid)-2] + "zz"},
			want:   CheckResponse{Authenticated: false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cookies []*http.Cookie
			if tt.cookie != nil {
				cookies = append(cookies, tt.cookie)
			}
			res, body := doRequest(t, auth.Middleware(CheckHandler()), http.MethodGet, nil, cookies...)
			assert.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

			var got CheckResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogout(t *testing.T) {
	valid, err := token.BuildJWT("1", "gyu")
	require.NoError(t, err)

	res, _ := doRequest(t, LogoutHandler(), http.MethodPost, nil, &http.Cookie{Name: cookie.AccessTokenName, Value: valid})
	assert.Equal(t, http.StatusOK, res.StatusCode)

	cookies := res.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, cookie.AccessTokenName, cookies[0].Name)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)

	// выход без cookie тоже успешен
	res, _ = doRequest(t, LogoutHandler(), http.MethodPost, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestHandleOtherRequest(t *testing.T) {
	res, _ := doRequest(t, HandleOtherRequest(), http.MethodGet, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestRegisterLoginScenario(t *testing.T) {
	stor := inmemory.NewStore()
	credentials := mustMarshal(t, identity.IdentityData{Username: "gyu", Password: "mypass123"})

	// регистрация
	res, body := doRequest(t, RegisterHandler(stor), http.MethodPost, credentials)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"id":"1","username":"gyu"}`, string(body))
	_, err := cookie.GetTokenFromResponse(res)
	require.NoError(t, err)

	// повторная регистрация с другим паролем
	res, _ = doRequest(t, RegisterHandler(stor), http.MethodPost,
		mustMarshal(t, identity.IdentityData{Username: "gyu", Password: "other"}))
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	// авторизация с теми же данными
	res, body = doRequest(t, LoginHandler(stor), http.MethodPost, credentials)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"id":"1","username":"gyu"}`, string(body))

	// авторизация с неверным паролем
	res, _ = doRequest(t, LoginHandler(stor), http.MethodPost,
		mustMarshal(t, identity.IdentityData{Username: "gyu", Password: "wrong"}))
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRegisterConcurrent(t *testing.T) {
	stor := inmemory.NewStore()

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = make(map[int]int)
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, err := json.Marshal(identity.IdentityData{Username: "gyu", Password: "mypass123"})
			if !assert.NoError(t, err) {
				return
			}
			request := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBuffer(body))
			w := httptest.NewRecorder()
			Register(w, request, stor)

			mu.Lock()
			statuses[w.Code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, statuses[http.StatusOK])
	assert.Equal(t, workers-1, statuses[http.StatusConflict])
}
