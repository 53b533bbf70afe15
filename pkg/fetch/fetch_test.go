package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/wfscan/pkg/fetch"
)

func TestGetSetsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	c := fetch.NewClient()
	body, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, fetch.DefaultUserAgent, gotUA)
}

func TestGetSurfacesStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := fetch.NewClient()
	_, err := c.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, fetch.IsHTTPStatus(err))
	assert.False(t, fetch.IsTransportFailure(err))
}

func TestGetSurfacesTransportFailure(t *testing.T) {
	c := fetch.NewClient()
	_, err := c.Get(context.Background(), "http://127.0.0.1:0/unreachable")
	require.Error(t, err)
	assert.False(t, fetch.IsHTTPStatus(err))
	assert.True(t, fetch.IsTransportFailure(err))
}
