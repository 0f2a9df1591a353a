package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/golabing/console/internal/middleware"
	"github.com/golabing/console/internal/models"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestRouter(sess *models.Session) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.WithResponseMeta())
	r.Use(func(c *gin.Context) {
		if sess != nil {
			local := *sess
			middleware.SetSession(c, &local)
		}
		c.Next()
	})
	return r
}

func sessionFor(role models.Role) *models.Session {
	return &models.Session{
		ID:            "sess-1",
		Authenticated: true,
		User:          &models.SessionUser{ID: "u1", Name: "Ann", Email: "ann@x.io", Role: role, OrgID: "org-1"},
		Credentials:   []models.BackendCookie{{Name: "session_token", Value: "abc"}},
	}
}

func perform(r http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}
