package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otp-auth/internal/controllers"
	"otp-auth/internal/lock"
	"otp-auth/internal/logging"
	"otp-auth/internal/models"
	"otp-auth/internal/services"
	"otp-auth/internal/store"
	"otp-auth/internal/token"
	"otp-auth/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedCodes struct{ code string }

func (f fixedCodes) Generate() (string, time.Time, error) {
	return f.code, time.Now().Add(5 * time.Minute), nil
}

type outbox struct {
	mu   sync.Mutex
	sent map[string][]string
	err  error
}

func (o *outbox) SendOTP(_ context.Context, email, code string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sent == nil {
		o.sent = map[string][]string{}
	}
	o.sent[email] = append(o.sent[email], code)
	return o.err
}

type failingStore struct{ store.UserStore }

func (failingStore) FindByEmail(context.Context, string) (*models.User, error) {
	return nil, errors.New("connection reset by peer")
}

type testApp struct {
	router *gin.Engine
	users  *store.MemoryStore
	mail   *outbox
	issuer *token.Issuer
}

func newTestApp(t *testing.T, users store.UserStore) *testApp {
	t.Helper()
	mem := store.NewMemoryStore()
	if users == nil {
		users = mem
	}
	app := &testApp{users: mem, mail: &outbox{}, issuer: token.NewIssuer([]byte("test-secret"), time.Hour)}
	log := logging.Nop()
	svc := services.NewAuthService(users, utils.NewPasswordHasher(4), fixedCodes{"123456"}, app.mail, app.issuer,
		services.WithLocker(lock.NewLocal()), services.WithLogger(log))
	app.router = NewRouter(controllers.NewAuthController(svc, log, 5*time.Minute), app.issuer, log)
	return app
}

func (a *testApp) do(t *testing.T, method, path, body string, header ...string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, nil)
	code, body := app.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body["status"])
}

func TestScenario_SignupVerifyLoginMe(t *testing.T) {
	app := newTestApp(t, nil)

	code, body := app.do(t, http.MethodPost, "/api/auth/signup", `{"name":"Alice","email":"a@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "a@x.com", body["email"])
	assert.Equal(t, "Signup successful. OTP sent to your email. Please verify within 5 minutes.", body["message"])
	assert.Equal(t, []string{"123456"}, app.mail.sent["a@x.com"])

	code, body = app.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"secret1"}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, services.MsgNotVerified, body["message"])

	code, body = app.do(t, http.MethodPost, "/api/auth/verify-otp", `{"email":"a@x.com","otp":"123456"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Account verified successfully. You can now log in.", body["message"])

	stored, err := app.users.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
	assert.Nil(t, stored.OTPCode)
	assert.Nil(t, stored.OTPExpiry)

	code, body = app.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Login successful", body["message"])
	tok, _ := body["token"].(string)
	require.NotEmpty(t, tok)

	claims, err := app.issuer.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, int64(3600), claims.ExpiresAt.Unix()-claims.IssuedAt.Unix())

	code, body = app.do(t, http.MethodGet, "/api/auth/me", "", "Authorization", "Bearer "+tok)
	require.Equal(t, http.StatusOK, code, body)
	user := body["user"].(map[string]any)
	assert.Equal(t, claims.UserID, user["id"])
	assert.Equal(t, "Alice", user["name"])
	assert.Equal(t, true, user["isVerified"])
}

func TestErrorResponses(t *testing.T) {
	app := newTestApp(t, nil)
	app.do(t, http.MethodPost, "/api/auth/signup", `{"name":"Vera","email":"v@x.com","password":"pw"}`)
	app.do(t, http.MethodPost, "/api/auth/verify-otp", `{"email":"v@x.com","otp":"123456"}`)
	app.do(t, http.MethodPost, "/api/auth/signup", `{"name":"Una","email":"u@x.com","password":"pw"}`)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		msg    string
	}{
		{"signup missing", "/api/auth/signup", `{"email":"a@x.com"}`, 400, services.MsgSignupFieldsRequired},
		{"signup malformed", "/api/auth/signup", `{"name":`, 400, services.MsgSignupFieldsRequired},
		{"signup long password", "/api/auth/signup", `{"name":"L","email":"l@x.com","password":"` + strings.Repeat("p", 73) + `"}`, 400, services.MsgPasswordTooLong},
		{"signup verified", "/api/auth/signup", `{"name":"X","email":"v@x.com","password":"pw"}`, 400, services.MsgAlreadyRegistered},
		{"verify missing", "/api/auth/verify-otp", `{"email":"u@x.com"}`, 400, services.MsgVerifyFieldsRequired},
		{"verify numeric otp", "/api/auth/verify-otp", `{"email":"u@x.com","otp":123456}`, 400, services.MsgVerifyFieldsRequired},
		{"verify unknown", "/api/auth/verify-otp", `{"email":"n@x.com","otp":"123456"}`, 400, services.MsgUserNotFound},
		{"verify verified", "/api/auth/verify-otp", `{"email":"v@x.com","otp":"123456"}`, 400, services.MsgAlreadyVerified},
		{"verify wrong", "/api/auth/verify-otp", `{"email":"u@x.com","otp":"000000"}`, 400, services.MsgInvalidOTP},
		{"resend missing", "/api/auth/resend-otp", `{}`, 400, services.MsgEmailRequired},
		{"resend unknown", "/api/auth/resend-otp", `{"email":"n@x.com"}`, 400, services.MsgResendNotFound},
		{"resend verified", "/api/auth/resend-otp", `{"email":"v@x.com"}`, 400, services.MsgResendVerified},
		{"login missing", "/api/auth/login", `{"email":"v@x.com"}`, 400, services.MsgLoginFieldsRequired},
		{"login unknown", "/api/auth/login", `{"email":"n@x.com","password":"pw"}`, 400, services.MsgInvalidLogin},
		{"login wrong", "/api/auth/login", `{"email":"v@x.com","password":"bad"}`, 400, services.MsgInvalidLogin},
		{"login unverified", "/api/auth/login", `{"email":"u@x.com","password":"pw"}`, 403, services.MsgNotVerified},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, body := app.do(t, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.status, code)
			assert.Equal(t, map[string]any{"message": tc.msg}, body)
		})
	}
}

func TestResendOTP_SendsAgain(t *testing.T) {
	app := newTestApp(t, nil)
	app.do(t, http.MethodPost, "/api/auth/signup", `{"name":"Una","email":"u@x.com","password":"pw"}`)

	code, body := app.do(t, http.MethodPost, "/api/auth/resend-otp", `{"email":"U@x.com"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "New OTP sent to your email.", body["message"])
	assert.Len(t, app.mail.sent["u@x.com"], 2)
}

func TestServerErrorsHideCause(t *testing.T) {
	app := newTestApp(t, failingStore{})

	code, body := app.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"pw"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, map[string]any{"message": "Server error during login"}, body)

	code, body = app.do(t, http.MethodPost, "/api/auth/signup", `{"name":"A","email":"a@x.com","password":"pw"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Server error during signup", body["message"])
}

func TestMe_RequiresToken(t *testing.T) {
	app := newTestApp(t, nil)
	code, body := app.do(t, http.MethodGet, "/api/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.NotEmpty(t, body["message"])
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, addr, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}), time.Second, logging.Nop())
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
