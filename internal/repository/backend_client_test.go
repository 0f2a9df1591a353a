package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golabing/console/internal/models"
	appErrors "github.com/golabing/console/pkg/errors"
)

type recordingObserver struct {
	mu     sync.Mutex
	routes []string
	status []int
}

func (o *recordingObserver) ObserveUpstream(route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.routes = append(o.routes, route)
	o.status = append(o.status, status)
}

func newTestBackend(t *testing.T, handler http.HandlerFunc) (*BackendClient, *recordingObserver) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	obs := &recordingObserver{}
	return NewBackendClient(BackendOptions{BaseURL: srv.URL + "/", BreakerFailures: 2, Observer: obs}, nil), obs
}

func TestBackendClientDecodesAndForwardsCookies(t *testing.T) {
	client, obs := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/lab_ms/getCartItems/user%201", r.URL.EscapedPath())
		ck, err := r.Cookie("session_token")
		require.NoError(t, err)
		assert.Equal(t, "abc", ck.Value)
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":"c1","labid":"l1","quantity":1}]}`))
	})

	var out struct {
		Data []models.CartItem `json:"data"`
	}
	err := client.Get("lab_ms/getCartItems", "user 1").
		Cookies([]models.BackendCookie{{Name: "session_token", Value: "abc"}}).
		Do(context.Background(), &out)

	require.NoError(t, err)
	require.Len(t, out.Data, 1)
	assert.Equal(t, "l1", out.Data[0].LabID)
	assert.Equal(t, []string{"lab_ms/getCartItems"}, obs.routes)
	assert.Equal(t, []int{200}, obs.status)
}

func TestBackendClientSuccessFalseIsRejected(t *testing.T) {
	client, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"Lab already in cart"}`))
	})

	err := client.Post("lab_ms/addToCart").JSON(map[string]string{"labId": "l1"}).Do(context.Background(), nil)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUpstreamRejected.Code, appErr.Code)
	assert.Equal(t, "Lab already in cart", appErr.Message)
}

func TestBackendClientDefaultMessage(t *testing.T) {
	client, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`not json`))
	})

	err := client.Post("lab_ms/getAllLabCatalogues").Do(context.Background(), nil)

	appErr := appErrors.FromError(err)
	assert.Equal(t, "Something went wrong", appErr.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
}

func TestBackendClientAuthFailure(t *testing.T) {
	client, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"no access"}`))
	})

	err := client.Get("user_ms/user_profile").Do(context.Background(), nil)

	assert.True(t, IsAuthFailure(err))
	assert.Equal(t, "no access", appErrors.FromError(err).Message)
	assert.False(t, IsAuthFailure(errors.New("boom")))
}

func TestBackendClientExchangeReturnsCookies(t *testing.T) {
	client, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session_token", Value: "fresh"})
		_, _ = w.Write([]byte(`{"success":true,"result":{"id":"u1"}}`))
	})

	var out struct {
		Result models.SessionUser `json:"result"`
	}
	reply, err := client.Post("login").JSON(map[string]string{"email": "a@b.c"}).Exchange(context.Background(), &out)

	require.NoError(t, err)
	require.Len(t, reply.Cookies, 1)
	assert.Equal(t, "fresh", reply.Cookies[0].Value)
	assert.Equal(t, "u1", out.Result.ID)
}

func TestBackendClientMultipart(t *testing.T) {
	client, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "lab-1", r.FormValue("labId"))
		assert.Equal(t, "Cluster", r.FormValue("title"))
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	err := client.Post("vmcluster_ms/updateClusterLab").
		Multipart(map[string]string{"labId": "lab-1", "title": "Cluster"}).
		Do(context.Background(), nil)
	require.NoError(t, err)
}

func TestBackendClientBreakerOpensOnServerErrors(t *testing.T) {
	var calls int
	client, obs := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{}`)
	})

	for i := 0; i < 2; i++ {
		err := client.Get("organization_ms/organizations").Do(context.Background(), nil)
		assert.Equal(t, appErrors.ErrUpstream.Code, appErrors.FromError(err).Code)
	}
	assert.Equal(t, gobreaker.StateOpen, client.BreakerState())

	err := client.Get("organization_ms/organizations").Do(context.Background(), nil)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.Status)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{500, 500, 0}, obs.status)
}

func TestBackendClientClientErrorsDoNotTripBreaker(t *testing.T) {
	client, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "missing"})
	})

	for i := 0; i < 4; i++ {
		err := client.Delete("lab_ms/removeFromCart", "c1").Do(context.Background(), nil)
		assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
	}
	assert.Equal(t, gobreaker.StateClosed, client.BreakerState())
}

func TestBackendClientTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewBackendClient(BackendOptions{BaseURL: srv.URL}, nil)

	err := client.Get("user_ms/user_profile").Do(context.Background(), nil)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErr.Code)
	assert.False(t, IsAuthFailure(err))
	assert.True(t, strings.Contains(err.Error(), "user_ms/user_profile"))
}
