package httptransport

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

	"accountdesk/backend/internal/auth"
	"accountdesk/backend/internal/auth/jwt"
	"accountdesk/backend/internal/cache"
	"accountdesk/backend/internal/config"
	"accountdesk/backend/internal/domain"
	"accountdesk/backend/internal/health"
	"accountdesk/backend/internal/middleware"
	"accountdesk/backend/internal/monitoring"
	"accountdesk/backend/internal/service"
	"accountdesk/backend/internal/storage"
	"accountdesk/backend/internal/storage/filesystem"
)

type testServer struct {
	router *gin.Engine
	store  *storage.Store
	cookie *http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server:      config.ServerConfig{MaxBodyBytes: 1 << 20},
		Collections: config.CollectionsConfig{ServiceAccounts: "ServiceAccounts", TempEmails: "CloudflareTempEmail", PageSize: 12},
		CORS:        config.CORSConfig{AllowedOrigins: []string{"*"}},
		JWT:         config.JWTConfig{Secret: strings.Repeat("k", 32), Issuer: "test", SessionExpiry: time.Hour},
	}

	backend, err := filesystem.NewStore(t.TempDir())
	require.NoError(t, err)
	store := storage.NewStore(backend)

	hash, err := auth.HashPassword("toor")
	require.NoError(t, err)
	authService := auth.NewService(
		auth.NewStaticCredentials("root", hash),
		jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.SessionExpiry),
		cache.NewSessionRevocations(cache.NewLocalCache(100, time.Hour)),
		nil,
	)

	directory := service.NewDirectory(store, service.DirectoryConfig{
		ServiceAccounts: cfg.Collections.ServiceAccounts,
		TempEmails:      cfg.Collections.TempEmails,
	}, nil, nil)
	require.NoError(t, directory.Ensure(t.Context(), cfg.Collections.ServiceAccounts))

	metrics := monitoring.NewMetrics()
	router := NewRouter(RouterDependencies{
		Config:          cfg,
		AuthService:     authService,
		ServiceAccounts: service.NewRecords[domain.ServiceAccountRecord](store, nil, nil),
		TempEmails:      service.NewRecords[domain.TempEmailRecord](store, nil, nil),
		Directory:       directory,
		Health:          health.NewHealthChecker(store, nil),
		Metrics:         metrics,
		LoginLimiter:    middleware.NewRateLimiter("login", 60, 20, metrics),
	})

	return &testServer{router: router, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/login", gin.H{"username": "root", "password": "toor"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == middleware.SessionCookie {
			s.cookie = cookie
		}
	}
	require.NotNil(t, s.cookie)
	assert.True(t, s.cookie.HttpOnly)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/collections/service-accounts", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", gin.H{"username": "root", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid username or password"}`, rec.Body.String())

	s.login(t)

	rec = s.do(t, http.MethodGet, "/auth/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"root"`)

	rec = s.do(t, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	// 旧令牌已被吊销
	rec = s.do(t, http.MethodGet, "/collections/service-accounts", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServiceAccountRoutes(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	rec := s.do(t, http.MethodPost, "/collections/service-accounts", gin.H{
		"Email": "a@x.com", "Password": "p", "Warranty": "", "Service": "Netflix",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/collections/service-accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	accounts := decode[[]domain.ServiceAccountRecord](t, rec)
	require.Len(t, accounts, 1)
	assert.True(t, accounts[0].Availability)

	rec = s.do(t, http.MethodPut, "/collections/service-accounts", gin.H{
		"index": 0,
		"data":  gin.H{"Email": "a@x.com", "Password": "p", "Warranty": "C123", "Availability": true},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	accounts = decode[[]domain.ServiceAccountRecord](t, s.do(t, http.MethodGet, "/collections/service-accounts", nil))
	require.Len(t, accounts, 1)
	assert.False(t, accounts[0].Availability)
	assert.Equal(t, "C123", accounts[0].Warranty)

	rec = s.do(t, http.MethodPatch, "/collections/service-accounts/0", gin.H{"Warranty": "  "})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Availability":true`)

	rec = s.do(t, http.MethodPatch, "/collections/service-accounts/5", gin.H{"Warranty": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/collections/service-accounts", gin.H{"index": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	accounts = decode[[]domain.ServiceAccountRecord](t, s.do(t, http.MethodGet, "/collections/service-accounts", nil))
	assert.Empty(t, accounts)

	// 缺少 index 时按原接口返回 500 与静态提示
	rec = s.do(t, http.MethodDelete, "/collections/service-accounts", gin.H{})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to delete account"}`, rec.Body.String())

	// 越界写入产生的空位按 null 返回
	rec = s.do(t, http.MethodPut, "/collections/service-accounts", gin.H{
		"index": 1,
		"data":  gin.H{"Email": "b@x.com", "Password": "p", "Warranty": ""},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	holes := decode[[]*domain.ServiceAccountRecord](t, s.do(t, http.MethodGet, "/collections/service-accounts", nil))
	require.Len(t, holes, 2)
	assert.Nil(t, holes[0])
	require.NotNil(t, holes[1])
	assert.Equal(t, "b@x.com", holes[1].Email)
}

func TestTempEmailRoutes(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	// 集合文件尚不存在
	rec := s.do(t, http.MethodGet, "/collections/temp-emails", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to read data"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/collections/temp-emails", gin.H{"Email": "t@mail.test"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to add email"}`, rec.Body.String())

	require.NoError(t, s.store.CreateCollection(t.Context(), "CloudflareTempEmail"))

	rec = s.do(t, http.MethodPost, "/collections/temp-emails", gin.H{"Email": "t@mail.test", "Warranty": false})
	require.Equal(t, http.StatusOK, rec.Code)

	emails := decode[[]domain.TempEmailRecord](t, s.do(t, http.MethodGet, "/collections/temp-emails", nil))
	require.Len(t, emails, 1)
	assert.Equal(t, "t@mail.test", emails[0].Email)
	assert.True(t, emails[0].Availability)
}

func TestDirectoryRoutes(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	rec := s.do(t, http.MethodGet, "/collections/directory", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"services":["ServiceAccounts"]}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/collections/directory", gin.H{"serviceName": "Netflix"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"serviceName":"Netflix"}`, rec.Body.String())

	tests := []struct {
		name string
		body interface{}
		msg  string
	}{
		{"exists", gin.H{"serviceName": "Netflix"}, "Service already exists"},
		{"missing", gin.H{}, "Service name is required"},
		{"blank", gin.H{"serviceName": "   "}, "Service name is required"},
		{"traversal", gin.H{"serviceName": "../etc/passwd"}, "Invalid service name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/collections/directory", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"`+tt.msg+`"}`, rec.Body.String())
		})
	}

	rec = s.do(t, http.MethodGet, "/collections/directory", nil)
	assert.JSONEq(t, `{"services":["ServiceAccounts","Netflix"]}`, rec.Body.String())
}

func TestNamedCollectionRoutes(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	// 不存在的集合在追加时自动创建
	for _, warranty := range []string{"W-1", "", ""} {
		rec := s.do(t, http.MethodPost, "/collections/named/Spotify", gin.H{
			"Email": "s@x.com", "Warranty": warranty, "Service": "Spotify",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := s.do(t, http.MethodGet, "/collections/named/Spotify/view?pageSize=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		Items []struct {
			Index  int                         `json:"index"`
			Record domain.ServiceAccountRecord `json:"record"`
		} `json:"items"`
		Matched      int  `json:"matched"`
		MatchedAvail int  `json:"matchedAvailable"`
		HasMore      bool `json:"hasMore"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 3, view.Matched)
	assert.Equal(t, 2, view.MatchedAvail)
	assert.True(t, view.HasMore)
	require.Len(t, view.Items, 2)
	// 可用记录排在前面，保留原始下标
	assert.Equal(t, 1, view.Items[0].Index)
	assert.Equal(t, 2, view.Items[1].Index)

	rec = s.do(t, http.MethodGet, "/collections/named/Spotify/view?page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/collections/named/CloudflareTempEmail", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/collections/named/Missing", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = s.do(t, http.MethodGet, "/collections/directory", nil)
	assert.JSONEq(t, `{"services":["ServiceAccounts","Spotify"]}`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "accountdesk_http_requests_total")

	rec = s.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
