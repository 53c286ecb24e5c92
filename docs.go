// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// oidcrp (OIDC relying party) provides the client side of OpenID Connect
// and OAuth2 for public clients: the code flow with PKCE, the implicit
// flow, silent renew, refresh tokens, userinfo and logoff, over one or more
// provider configs.
//
// Packages:
//
//	oidc            flows, token validation and the multi config Client
//	oidc/callback   http.HandlerFuncs for the redirect back from a provider
//	jwt             JWS parsing and signature verification with JWKS keys
//	config          loading configs from yaml with env expansion
//	storage/memory  in memory Storage
//	storage/redis   redis backed Storage
//
// See README.md
package oidcrp
