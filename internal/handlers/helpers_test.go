package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"circle/internal/middleware"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	UseJSONFieldNames()
}

var testCookie = sessions.Options{Path: RefreshCookiePath, MaxAge: 3600, HttpOnly: true}

// newRouter 带错误中间件和刷新 cookie 的测试路由，userID 非 0 时模拟已登录
func newRouter(userID uint, role string) *gin.Engine {
	r := gin.New()
	store := cookie.NewStore([]byte("test-session-secret"))
	store.Options(testCookie)
	r.Use(sessions.Sessions(RefreshCookieName, store))
	r.Use(middleware.ErrorHandler())
	r.Use(func(c *gin.Context) {
		if userID != 0 {
			c.Set(middleware.CheckUserKey, userID)
			c.Set(middleware.UserRoleKey, role)
		}
		c.Next()
	})
	return r
}

func doJSON(r http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
