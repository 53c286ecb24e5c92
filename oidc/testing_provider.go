// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"context"
	"crypto"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/oidc-rp/jwt"
	sdkhttp "github.com/hashicorp/oidc-rp/sdk/http"
	"github.com/hashicorp/oidc-rp/sdk/id"
	"github.com/stretchr/testify/require"
)

// Paths served by the TestProvider.
const (
	TestDiscoveryPath  = DefaultWellKnownSuffix
	TestAuthorizePath  = "/authorize"
	TestTokenPath      = "/token"
	TestKeysPath       = "/certs"
	TestUserInfoPath   = "/userinfo"
	TestRevocationPath = "/revoke"
	TestEndSessionPath = "/logout"
	TestPARPath        = "/par"
)

// TestProvider is a local TLS server that supports test provider
// capabilities which make writing tests much easier. It implements the
// code flow with pkce, the implicit flow, refresh tokens, pushed
// authorization requests, userinfo, revocation and end session.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	alg        jwt.Alg
	keyID      string
	publicKey  crypto.PublicKey
	privateKey crypto.Signer

	mu            sync.Mutex
	clientID      string
	subject       string
	userInfoSub   string
	replyUserinfo map[string]interface{}
	customClaims  map[string]interface{}
	omitIDToken   bool
	expiresIn     int64
	status        map[string]int
	requests      map[string]int
	codes         map[string]testAuthRequest
	parRequests   map[string]url.Values
	accessTokens  map[string]bool
	refreshTokens map[string]bool
	revoked       map[string]bool
	lastAuthorize url.Values

	t *testing.T
}

// testAuthRequest is what the provider remembers about an authorize request
// until its code is exchanged.
type testAuthRequest struct {
	clientID      string
	redirectURI   string
	nonce         string
	codeChallenge string
}

// StartTestProvider creates a disposable TestProvider. It is stopped when
// the test completes.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		alg:     jwt.ES256,
		keyID:   "test-key",
		subject: "alice@example.com",
		replyUserinfo: map[string]interface{}{
			"email":       "alice@example.com",
			"given_name":  "Alice",
			"family_name": "Doe",
		},
		clientID:      "test-client",
		expiresIn:     3600,
		status:        map[string]int{},
		requests:      map[string]int{},
		codes:         map[string]testAuthRequest{},
		parRequests:   map[string]url.Values{},
		accessTokens:  map[string]bool{},
		refreshTokens: map[string]bool{},
		revoked:       map[string]bool{},
		t:             t,
	}
	p.publicKey, p.privateKey = TestGenerateKeys(t, p.alg)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the provider's address, which is also its issuer.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the provider.
func (p *TestProvider) CACert() string { return p.caCert }

// ClientID returns the client id the provider accepts.
func (p *TestProvider) ClientID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientID
}

// Config returns a valid code flow config for the provider.
func (p *TestProvider) Config() *Config {
	return &Config{
		ConfigID:              "test",
		Authority:             p.Addr(),
		ClientID:              p.ClientID(),
		RedirectURL:           "https://app.example.com/callback",
		PostLogoutRedirectURI: "https://app.example.com/",
		SilentRenewURL:        "https://app.example.com/silent-renew.html",
		Scope:                 "openid profile offline_access",
		ResponseType:          ResponseTypeCode,
	}
}

// HTTPClient returns a transport that trusts the provider's certificate.
func (p *TestProvider) HTTPClient() *sdkhttp.Client {
	p.t.Helper()
	c, err := sdkhttp.New(sdkhttp.WithCACert(p.caCert))
	require.NoError(p.t, err)
	return c
}

// SigningKey returns the key pair the provider signs id_tokens with.
func (p *TestProvider) SigningKey() (crypto.PublicKey, crypto.Signer, jwt.Alg, string) {
	return p.publicKey, p.privateKey, p.alg, p.keyID
}

// SetClientID sets the client id the provider accepts.
func (p *TestProvider) SetClientID(clientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
}

// SetCustomClaims adds claims to every id_token issued. They override the
// standard claims.
func (p *TestProvider) SetCustomClaims(claims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = claims
}

// SetUserInfoSubject sets the sub returned by the userinfo endpoint.
func (p *TestProvider) SetUserInfoSubject(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfoSub = sub
}

// SetExpiresIn sets the expires_in of issued access tokens.
func (p *TestProvider) SetExpiresIn(seconds int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiresIn = seconds
}

// OmitIDToken stops the token endpoint from returning id_tokens.
func (p *TestProvider) OmitIDToken() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// SetStatus forces every request to path to fail with code. Zero removes
// the override.
func (p *TestProvider) SetStatus(path string, code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if code == 0 {
		delete(p.status, path)
		return
	}
	p.status[path] = code
}

// RequestCount returns the number of requests received for path.
func (p *TestProvider) RequestCount(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[path]
}

// Revoked reports whether token was revoked.
func (p *TestProvider) Revoked(token string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revoked[token]
}

// LastAuthorizeRequest returns the parameters of the last authorize
// request, with pushed parameters resolved.
func (p *TestProvider) LastAuthorizeRequest() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAuthorize
}

// Login follows authURL as an already authenticated user agent would and
// returns the url the provider redirected to.
func (p *TestProvider) Login(authURL string) string {
	p.t.Helper()
	require := require.New(p.t)
	c := p.HTTPClient().HTTPClient()
	noRedirect := *c
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, authURL, nil)
	require.NoError(err)
	resp, err := noRedirect.Do(req)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)
	return resp.Header.Get("Location")
}

// IssueIDToken signs an id_token for the provider's subject with the
// provider's key.
func (p *TestProvider) IssueIDToken(nonce, accessToken string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issueIDToken(nonce, accessToken)
}

func (p *TestProvider) issueIDToken(nonce, accessToken string) string {
	p.t.Helper()
	claims := testIDTokenClaims(p.Addr(), p.clientID, nonce, time.Now())
	claims["sub"] = p.subject
	if nonce == "" {
		delete(claims, "nonce")
	}
	if accessToken != "" {
		h, err := TokenHash(accessToken, p.alg)
		require.NoError(p.t, err)
		claims["at_hash"] = h
	}
	for k, v := range p.customClaims {
		claims[k] = v
	}
	return TestSignJWT(p.t, p.privateKey, p.alg, p.keyID, claims)
}

func (p *TestProvider) newToken(prefix string) string {
	p.t.Helper()
	s, err := id.Random(32)
	require.NoError(p.t, err)
	return prefix + "_" + s
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(out)
}

func (p *TestProvider) writeTokenError(w http.ResponseWriter, statusCode int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": description,
	})
}

var testFormPostTmpl = template.Must(template.New("form_post").Parse(`<!DOCTYPE html>
<html>
<head><title>Submit This Form</title></head>
<body onload="javascript:document.forms[0].submit()">
<form method="post" action="{{.Action}}">
{{- range $k, $v := .Params}}
<input type="hidden" name="{{$k}}" id="{{$k}}" value="{{index $v 0}}"/>
{{- end}}
</form>
</body>
</html>
`))

// writeFormPost answers with an auto submitting form which posts the
// response parameters to the redirect uri.
func (p *TestProvider) writeFormPost(w http.ResponseWriter, redirectURI string, v url.Values) {
	w.Header().Set("Content-Type", "text/html;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	_ = testFormPostTmpl.Execute(w, struct {
		Action string
		Params url.Values
	}{Action: redirectURI, Params: v})
}

// redirectWithError sends the user agent back with an authentication error.
func (p *TestProvider) redirectWithError(w http.ResponseWriter, req *http.Request, redirectURI, state, code string) {
	v := url.Values{}
	v.Set("error", code)
	v.Set("state", state)
	http.Redirect(w, req, redirectURI+"?"+v.Encode(), http.StatusFound)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.t.Helper()

	p.requests[req.URL.Path]++
	if code, ok := p.status[req.URL.Path]; ok {
		w.WriteHeader(code)
		return
	}

	switch req.URL.Path {
	case TestDiscoveryPath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.writeJSON(w, discoveryDocument{
			Issuer:                             p.Addr(),
			JWKSURI:                            p.Addr() + TestKeysPath,
			AuthorizationEndpoint:              p.Addr() + TestAuthorizePath,
			TokenEndpoint:                      p.Addr() + TestTokenPath,
			UserInfoEndpoint:                   p.Addr() + TestUserInfoPath,
			EndSessionEndpoint:                 p.Addr() + TestEndSessionPath,
			RevocationEndpoint:                 p.Addr() + TestRevocationPath,
			PushedAuthorizationRequestEndpoint: p.Addr() + TestPARPath,
		})

	case TestKeysPath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		k, err := jwt.NewJSONWebKey(p.publicKey, p.keyID, p.alg, "sig")
		require.NoError(p.t, err)
		p.writeJSON(w, jwt.JSONWebKeySet{Keys: []jwt.JSONWebKey{k}})

	case TestPARPath:
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := req.ParseForm(); err != nil {
			p.writeTokenError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if req.PostForm.Get("client_id") != p.clientID {
			p.writeTokenError(w, http.StatusUnauthorized, "invalid_client", "unknown client")
			return
		}
		uri := "urn:ietf:params:oauth:request_uri:" + p.newToken("par")
		p.parRequests[uri] = req.PostForm
		w.WriteHeader(http.StatusCreated)
		p.writeJSON(w, map[string]interface{}{"request_uri": uri, "expires_in": 60})

	case TestAuthorizePath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		qv := req.URL.Query()
		if uri := qv.Get("request_uri"); uri != "" {
			pushed, ok := p.parRequests[uri]
			if !ok || qv.Get("client_id") != pushed.Get("client_id") {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			delete(p.parRequests, uri)
			qv = pushed
		}
		p.lastAuthorize = qv
		p.authorize(w, req, qv)

	case TestTokenPath:
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := req.ParseForm(); err != nil {
			p.writeTokenError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if req.PostForm.Get("client_id") != p.clientID {
			p.writeTokenError(w, http.StatusUnauthorized, "invalid_client", "unknown client")
			return
		}
		switch req.PostForm.Get("grant_type") {
		case "authorization_code":
			p.exchangeCode(w, req.PostForm)
		case "refresh_token":
			p.refresh(w, req.PostForm)
		default:
			p.writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type", "bad grant_type")
		}

	case TestUserInfoPath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
		if !p.accessTokens[token] || p.revoked[token] {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		reply := map[string]interface{}{"sub": p.subject}
		if p.userInfoSub != "" {
			reply["sub"] = p.userInfoSub
		}
		for k, v := range p.replyUserinfo {
			reply[k] = v
		}
		p.writeJSON(w, reply)

	case TestRevocationPath:
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := req.ParseForm(); err != nil || req.PostForm.Get("client_id") != p.clientID {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.revoked[req.PostForm.Get("token")] = true
		w.WriteHeader(http.StatusOK)

	case TestEndSessionPath:
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// authorize answers an authorize request for an already authenticated
// user: with a code for the code flow and with tokens in the fragment for
// the implicit flow.
func (p *TestProvider) authorize(w http.ResponseWriter, req *http.Request, qv url.Values) {
	redirectURI := qv.Get("redirect_uri")
	state := qv.Get("state")
	if redirectURI == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	switch {
	case qv.Get("client_id") != p.clientID:
		p.redirectWithError(w, req, redirectURI, state, "unauthorized_client")
		return
	case state == "":
		p.redirectWithError(w, req, redirectURI, state, "invalid_request")
		return
	case !strings.Contains(" "+qv.Get("scope")+" ", " openid "):
		p.redirectWithError(w, req, redirectURI, state, "invalid_scope")
		return
	}

	switch qv.Get("response_type") {
	case ResponseTypeCode:
		if qv.Get("code_challenge") != "" && qv.Get("code_challenge_method") != "S256" {
			p.redirectWithError(w, req, redirectURI, state, "invalid_request")
			return
		}
		code := p.newToken("code")
		p.codes[code] = testAuthRequest{
			clientID:      qv.Get("client_id"),
			redirectURI:   redirectURI,
			nonce:         qv.Get("nonce"),
			codeChallenge: qv.Get("code_challenge"),
		}
		v := url.Values{}
		v.Set("code", code)
		v.Set("state", state)
		v.Set("session_state", "test-session")
		http.Redirect(w, req, redirectURI+"?"+v.Encode(), http.StatusFound)

	case ResponseTypeIDTokenToken, ResponseTypeIDToken:
		v := url.Values{}
		var access string
		if qv.Get("response_type") == ResponseTypeIDTokenToken {
			access = p.newToken("access")
			p.accessTokens[access] = true
			v.Set("access_token", access)
			v.Set("token_type", "Bearer")
			v.Set("expires_in", fmt.Sprint(p.expiresIn))
		}
		v.Set("id_token", p.issueIDToken(qv.Get("nonce"), access))
		v.Set("state", state)
		v.Set("session_state", "test-session")
		if qv.Get("response_mode") == "form_post" {
			p.writeFormPost(w, redirectURI, v)
			return
		}
		http.Redirect(w, req, redirectURI+"#"+v.Encode(), http.StatusFound)

	default:
		p.redirectWithError(w, req, redirectURI, state, "unsupported_response_type")
	}
}

func (p *TestProvider) exchangeCode(w http.ResponseWriter, form url.Values) {
	ar, ok := p.codes[form.Get("code")]
	if !ok {
		p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
		return
	}
	delete(p.codes, form.Get("code"))
	switch {
	case form.Get("redirect_uri") != ar.redirectURI:
		p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri does not match")
		return
	case ar.codeChallenge != "":
		challenge, err := CodeChallenge(form.Get("code_verifier"))
		if err != nil || challenge != ar.codeChallenge {
			p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "code_verifier does not match")
			return
		}
	}
	p.writeTokens(w, ar.nonce)
}

func (p *TestProvider) refresh(w http.ResponseWriter, form url.Values) {
	rt := form.Get("refresh_token")
	if !p.refreshTokens[rt] || p.revoked[rt] {
		p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "unknown refresh token")
		return
	}
	delete(p.refreshTokens, rt)
	p.writeTokens(w, "")
}

func (p *TestProvider) writeTokens(w http.ResponseWriter, nonce string) {
	access := p.newToken("access")
	refresh := p.newToken("refresh")
	p.accessTokens[access] = true
	p.refreshTokens[refresh] = true
	reply := tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn(p.expiresIn),
		Scope:        "openid profile offline_access",
	}
	if !p.omitIDToken {
		reply.IDToken = p.issueIDToken(nonce, access)
	}
	p.writeJSON(w, &reply)
}
