package account

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-task-manager/internal/core/auth"
	"go-task-manager/internal/core/config"
)

type envelope struct {
	Code   int             `json:"code"`
	Msg    string          `json:"msg"`
	Errors []string        `json:"errors"`
	Data   json.RawMessage `json:"data"`
}

func newTestEngine(t *testing.T) (*gin.Engine, *fakeSender) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	sender := &fakeSender{}
	jwter := &auth.JWTer{
		Secret:   []byte("route-test-secret"),
		Issuer:   "task-manager",
		Audience: "task-manager-clients",
		TTL:      30 * time.Minute,
	}

	r := gin.New()
	api := r.Group("/api/v1")
	m := &Module{
		DB:    db,
		Svc:   NewService(db, jwter, sender, zap.NewNop()),
		JWTer: jwter,
		Mail: config.Mail{
			ConfirmBaseURL: "http://app/confirm",
			ResetBaseURL:   "http://app/reset",
		},
	}
	m.MountAPI(api)
	return r, sender
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body, bearer string) envelope {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestAuthRoutes(t *testing.T) {
	r, _ := newTestEngine(t)

	// 注册
	env := doJSON(t, r, http.MethodPost, "/api/v1/auth/register",
		`{"userName":"alice1","email":"a@x.com","password":"Secret1"}`, "")
	require.Zero(t, env.Code)

	var reg struct {
		Data struct {
			ID    string `json:"id"`
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &reg))
	require.NotEmpty(t, reg.Data.Token)

	// 未确认先登录：拒
	env = doJSON(t, r, http.MethodPost, "/api/v1/auth/login",
		`{"userName":"alice1","password":"Secret1"}`, "")
	assert.Equal(t, 409, env.Code)
	assert.NotEmpty(t, env.Errors)

	// 邮件链接确认
	q := url.Values{"email": {"a@x.com"}, "token": {reg.Data.Token}}
	env = doJSON(t, r, http.MethodGet, "/api/v1/auth/confirm?"+q.Encode(), "", "")
	require.Zero(t, env.Code)

	// 登录拿会话 token
	env = doJSON(t, r, http.MethodPost, "/api/v1/auth/login",
		`{"userName":"alice1","password":"Secret1"}`, "")
	require.Zero(t, env.Code)

	var login struct {
		Data string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.Data)

	// /me 需要 Bearer
	env = doJSON(t, r, http.MethodGet, "/api/v1/me", "", "")
	assert.Equal(t, 401, env.Code)

	env = doJSON(t, r, http.MethodGet, "/api/v1/me", "", login.Data)
	require.Zero(t, env.Code)
	var me struct {
		UserName    string `json:"userName"`
		IsConfirmed bool   `json:"isConfirmed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "alice1", me.UserName)
	assert.True(t, me.IsConfirmed)
}

func TestRegisterValidation(t *testing.T) {
	r, _ := newTestEngine(t)

	// 用户名太短，binding 层直接拦
	env := doJSON(t, r, http.MethodPost, "/api/v1/auth/register",
		`{"userName":"al","email":"a@x.com","password":"Secret1"}`, "")
	assert.Equal(t, 400, env.Code)

	// 非法邮箱
	env = doJSON(t, r, http.MethodPost, "/api/v1/auth/register",
		`{"userName":"alice1","email":"not-an-email","password":"Secret1"}`, "")
	assert.Equal(t, 400, env.Code)
}
