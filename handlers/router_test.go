package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nutri-planner/app"
	"nutri-planner/auth"
	"nutri-planner/config"
	"nutri-planner/models"
	"nutri-planner/storage"
)

type testServer struct {
	t      *testing.T
	state  *app.State
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	cfg := &config.Config{
		JWTSecret:      "test-secret",
		AllowedOrigins: []string{"http://localhost:5173"},
		Location:       time.UTC,
	}
	s := app.New(cfg, storage.NewMemoryStore(), zap.NewNop(), app.WithClock(func() time.Time { return now }))
	return &testServer{t: t, state: s, router: SetupRouter(s)}
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// signUp registers an account and returns its bearer token.
func (ts *testServer) signUp(name, email string, role models.Role) (string, models.User) {
	ts.t.Helper()
	w := ts.do(http.MethodPost, "/register", "", gin.H{"name": name, "email": email, "password": "segredo123", "role": role})
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(http.MethodPost, "/login", "", gin.H{"email": email, "password": "segredo123"})
	require.Equal(ts.t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[sessionResponse](ts.t, w)
	return resp.Token, resp.User
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRegisterLoginGuardRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/register", "", gin.H{"name": "Ana", "email": "ana@example.com", "password": "segredo123"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "segredo123")

	w = ts.do(http.MethodPost, "/register", "", gin.H{"name": "Ana", "email": "ana@example.com", "password": "segredo123"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(http.MethodPost, "/register", "", gin.H{"name": "Ana", "email": "not-an-email", "password": "segredo123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, "/login", "", gin.H{"email": "ana@example.com", "password": "errada123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/login", "", gin.H{"email": "ana@example.com", "password": "segredo123"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[sessionResponse](t, w)
	assert.Equal(t, models.RolePatient, resp.User.Role)
	assert.Equal(t, auth.PagePatientDashboard, resp.Redirect)
	assert.NotEmpty(t, resp.Token)

	w = ts.do(http.MethodGet, "/account", resp.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/patient/meals", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodGet, "/nutritionist/review", resp.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodPost, "/logout", resp.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/account", resp.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "token outlives logout")
	w = ts.do(http.MethodGet, "/patient/meals", resp.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenFollowsInjectedClock(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/register", "", gin.H{"name": "Ana", "email": "ana@example.com", "password": "segredo123"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = ts.do(http.MethodPost, "/login", "", gin.H{"email": "ana@example.com", "password": "segredo123"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[sessionResponse](t, w)
	assert.Equal(t, time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC), resp.ExpiresAt.UTC())

	// The frozen clock is years behind the wall clock; the token must still
	// be judged against it.
	w = ts.do(http.MethodGet, "/account", resp.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestLoginTrimsEmail(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/register", "", gin.H{"name": "Ana", "email": " pad@example.com ", "password": "segredo123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(http.MethodPost, "/login", "", gin.H{"email": " pad@example.com ", "password": "segredo123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "pad@example.com", decode[sessionResponse](t, w).User.Email)
}

func TestOverlongPasswordIsBadRequest(t *testing.T) {
	ts := newTestServer(t)
	long := strings.Repeat("x", 80)

	w := ts.do(http.MethodPost, "/register", "", gin.H{"name": "Ana", "email": "ana@example.com", "password": long})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	token, _ := ts.signUp("Bia", "bia@example.com", models.RolePatient)
	w = ts.do(http.MethodPut, "/account/password", token, gin.H{"oldPassword": "segredo123", "newPassword": long})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestAccountUpdates(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.signUp("Ana", "ana@example.com", models.RolePatient)

	w := ts.do(http.MethodPut, "/account", token, gin.H{"name": "Ana Souza"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Ana Souza")

	w = ts.do(http.MethodPut, "/account/password", token, gin.H{"oldPassword": "errada", "newPassword": "novasenha1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPut, "/account/password", token, gin.H{"oldPassword": "segredo123", "newPassword": "curta"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPut, "/account/password", token, gin.H{"oldPassword": "segredo123", "newPassword": "novasenha1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, "/login", "", gin.H{"email": "ana@example.com", "password": "novasenha1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGoogleLoginDisabled(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/auth/google/login", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		&models.ValidationError{Msg: "x"}: http.StatusBadRequest,
		models.ErrNotFound:                http.StatusNotFound,
		models.ErrInvalidCredentials:      http.StatusUnauthorized,
		models.ErrForbidden:               http.StatusForbidden,
		models.ErrDuplicateEmail:          http.StatusConflict,
		models.ErrNoPlan:                  http.StatusUnprocessableEntity,
		models.ErrInvalidState:            http.StatusUnprocessableEntity,
		assert.AnError:                    http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}
