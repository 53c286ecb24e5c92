// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package http provides the default transport used to talk to an OIDC
// provider's discovery, jwks, token, userinfo, revocation and end session
// endpoints.
package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
)

var (
	ErrInvalidCertificatePem = errors.New("invalid certificate PEM")

	// ErrTransport is matched by every connection level failure.
	ErrTransport = errors.New("transport error")

	// ErrHTTPStatus is matched by every non-2xx response.
	ErrHTTPStatus = errors.New("http status error")
)

const (
	// ContentTypeForm is the content type used for token, par, revocation and
	// end session requests.
	ContentTypeForm = "application/x-www-form-urlencoded"

	// BypassParam is the query parameter that asks an angular style service
	// worker to let the request through to the network.
	BypassParam = "ngsw-bypass"
)

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// Is reports whether target is ErrHTTPStatus.
func (e *StatusError) Is(target error) bool { return target == ErrHTTPStatus }

// TransportError wraps a failure that happened before a response was read.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport error: %s", e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Request carries the per request settings.
type Request struct {
	// BearerToken is sent as "Authorization: Bearer <token>" when not empty.
	BearerToken string

	// BypassServiceWorker appends the ngsw-bypass query parameter.
	BypassServiceWorker bool

	// Header is merged into the outgoing request headers.
	Header http.Header
}

// Client is the default transport. It is safe for concurrent use.
type Client struct {
	client *http.Client
	logger hclog.Logger
}

// New creates a Client.
// Supported options:
//
//	WithCACert
//	WithHTTPClient
//	WithLogger
func New(opt ...Option) (*Client, error) {
	const op = "http.New"
	opts := getClientOpts(opt...)
	c := &Client{
		client: opts.withHTTPClient,
		logger: opts.withLogger,
	}
	if c.client == nil {
		client, err := NewClient(opts.withCACert)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		c.client = client
	}
	if c.logger == nil {
		c.logger = hclog.NewNullLogger()
	}
	return c, nil
}

// NewClient creates a new http client which will use the optional CA certificate PEM
// if provided, otherwise it will use the installed system CA chain.
func NewClient(caPEM string) (*http.Client, error) {
	tr := cleanhttp.DefaultPooledTransport()

	if caPEM != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
			return nil, ErrInvalidCertificatePem
		}

		tr.TLSClientConfig = &tls.Config{
			RootCAs: certPool,
		}
	}

	return &http.Client{
		Transport: tr,
	}, nil
}

// OidcClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func OidcClientContext(ctx context.Context, client *http.Client) context.Context {
	return oidc.ClientContext(ctx, client)
}

// HTTPClient returns the underlying *http.Client.
func (c *Client) HTTPClient() *http.Client { return c.client }

// Get issues a GET for rawURL with "Accept: application/json".
func (c *Client) Get(ctx context.Context, rawURL string, r Request) ([]byte, error) {
	const op = "Client.Get"
	u, err := withBypass(rawURL, r.BypassServiceWorker)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, r)
}

// Post issues a POST of body to rawURL. The content type defaults to
// application/x-www-form-urlencoded unless r.Header sets one.
func (c *Client) Post(ctx context.Context, rawURL string, body string, r Request) ([]byte, error) {
	const op = "Client.Post"
	u, err := withBypass(rawURL, r.BypassServiceWorker)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create request: %w", op, err)
	}
	req.Header.Set("Content-Type", ContentTypeForm)
	req.Header.Set("Accept", "application/json")
	return c.do(req, r)
}

func (c *Client) do(req *http.Request, r Request) ([]byte, error) {
	for k, vs := range r.Header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.BearerToken)
	}
	c.logger.Debug("sending request", "method", req.Method, "url", req.URL.Redacted())
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

func withBypass(rawURL string, bypass bool) (string, error) {
	if !bypass {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("unable to parse url: %w", err)
	}
	// appended to RawQuery so the existing parameters keep their order
	if u.Query().Has(BypassParam) {
		return rawURL, nil
	}
	if u.RawQuery != "" {
		u.RawQuery += "&"
	}
	u.RawQuery += BypassParam + "="
	return u.String(), nil
}
