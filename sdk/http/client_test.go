// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get(t *testing.T) {
	t.Parallel()
	var gotReq *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotReq = req
		switch req.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("not here"))
		default:
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	c, err := New(WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("headers", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		got, err := c.Get(ctx, srv.URL+"/doc", Request{BearerToken: "tk"})
		require.NoError(err)
		assert.JSONEq(`{"ok":true}`, string(got))
		assert.Equal("application/json", gotReq.Header.Get("Accept"))
		assert.Equal("Bearer tk", gotReq.Header.Get("Authorization"))
		assert.False(gotReq.URL.Query().Has(BypassParam))
	})
	t.Run("bypass", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, err := c.Get(ctx, srv.URL+"/doc?a=b", Request{BypassServiceWorker: true})
		require.NoError(err)
		assert.True(gotReq.URL.Query().Has(BypassParam))
		assert.Equal("b", gotReq.URL.Query().Get("a"))
		assert.Empty(gotReq.Header.Get("Authorization"))
	})
	t.Run("bypass-keeps-order", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, err := c.Get(ctx, srv.URL+"/doc?z=1&a=2&z=3", Request{BypassServiceWorker: true})
		require.NoError(err)
		assert.Equal("z=1&a=2&z=3&"+BypassParam+"=", gotReq.URL.RawQuery)

		_, err = c.Get(ctx, srv.URL+"/doc?"+BypassParam+"=&b=1", Request{BypassServiceWorker: true})
		require.NoError(err)
		assert.Equal(BypassParam+"=&b=1", gotReq.URL.RawQuery)
	})
	t.Run("status-error", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, err := c.Get(ctx, srv.URL+"/missing", Request{})
		require.Error(err)
		assert.True(errors.Is(err, ErrHTTPStatus))
		assert.False(errors.Is(err, ErrTransport))
		var se *StatusError
		require.True(errors.As(err, &se))
		assert.Equal(http.StatusNotFound, se.StatusCode)
		assert.Equal("not here", string(se.Body))
	})
	t.Run("transport-error", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		dead := httptest.NewServer(http.NotFoundHandler())
		dead.Close()
		_, err := c.Get(ctx, dead.URL, Request{})
		require.Error(err)
		assert.True(errors.Is(err, ErrTransport))
		assert.False(errors.Is(err, ErrHTTPStatus))
	})
}

func TestClient_Post(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	var gotBody, gotContentType, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		gotBody = string(b)
		gotContentType = req.Header.Get("Content-Type")
		gotCustom = req.Header.Get("X-Custom")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := New(WithHTTPClient(srv.Client()))
	require.NoError(err)
	_, err = c.Post(context.Background(), srv.URL, "a=b&c=d", Request{Header: http.Header{"X-Custom": []string{"v"}}})
	require.NoError(err)
	assert.Equal("a=b&c=d", gotBody)
	assert.Equal(ContentTypeForm, gotContentType)
	assert.Equal("v", gotCustom)
}

func TestNewClient(t *testing.T) {
	t.Parallel()
	t.Run("no-ca", func(t *testing.T) {
		c, err := NewClient("")
		require.NoError(t, err)
		assert.NotNil(t, c.Transport)
	})
	t.Run("bad-ca", func(t *testing.T) {
		_, err := NewClient("not a pem")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidCertificatePem))
	})
}
