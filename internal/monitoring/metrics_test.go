package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	// 独立注册表，可重复创建
	m := NewMetrics()
	_ = NewMetrics()

	m.RecordMutation("ServiceAccounts", "add")
	m.RecordMutation("ServiceAccounts", "add")
	m.RecordMutation("Netflix", "delete")
	m.RecordLogin("success")
	m.RecordLogin("failure")
	m.RecordLogout()

	m.RecordHTTPRequest("GET", "/collections/service-accounts", "200", 10*time.Millisecond, 512)

	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `accountdesk_collection_mutations_total{collection="ServiceAccounts",op="add"} 2`))
	assert.True(t, strings.Contains(body, `accountdesk_collection_mutations_total{collection="Netflix",op="delete"} 1`))
	assert.True(t, strings.Contains(body, `accountdesk_login_attempts_total{result="success"} 1`))
	assert.True(t, strings.Contains(body, "accountdesk_sessions_issued 0"))
	assert.True(t, strings.Contains(body, "accountdesk_http_requests_total"))
}
