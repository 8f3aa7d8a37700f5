package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubChecker struct{ err error }

func (s stubChecker) Health() error { return s.err }

func serve(handler http.HandlerFunc, path string) int {
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code
}

func TestHealthChecker(t *testing.T) {
	t.Run("存储正常", func(t *testing.T) {
		hc := NewHealthChecker(stubChecker{}, nil)
		assert.Equal(t, http.StatusOK, serve(hc.LiveHandler, "/live"))
		assert.Equal(t, http.StatusOK, serve(hc.ReadyHandler, "/ready"))
	})

	t.Run("存储不可用时未就绪但仍存活", func(t *testing.T) {
		hc := NewHealthChecker(stubChecker{err: errors.New("disk gone")}, nil)
		assert.Equal(t, http.StatusOK, serve(hc.LiveHandler, "/live"))
		assert.Equal(t, http.StatusServiceUnavailable, serve(hc.ReadyHandler, "/ready"))
	})

	t.Run("附加探测失败", func(t *testing.T) {
		hc := NewHealthChecker(stubChecker{}, nil)
		hc.AddReadinessPing("redis", func(context.Context) error { return errors.New("refused") })
		assert.Equal(t, http.StatusServiceUnavailable, serve(hc.ReadyHandler, "/ready"))
	})
}
