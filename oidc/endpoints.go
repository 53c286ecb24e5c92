// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

// Endpoints are a provider's well-known endpoints. They are stored per
// config once discovered.
type Endpoints struct {
	Issuer                string `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	JWKSURI               string `json:"jwksUri,omitempty" yaml:"jwksUri,omitempty"`
	AuthorizationEndpoint string `json:"authorizationEndpoint,omitempty" yaml:"authorizationEndpoint,omitempty"`
	TokenEndpoint         string `json:"tokenEndpoint,omitempty" yaml:"tokenEndpoint,omitempty"`
	UserInfoEndpoint      string `json:"userInfoEndpoint,omitempty" yaml:"userInfoEndpoint,omitempty"`
	EndSessionEndpoint    string `json:"endSessionEndpoint,omitempty" yaml:"endSessionEndpoint,omitempty"`
	CheckSessionIframe    string `json:"checkSessionIframe,omitempty" yaml:"checkSessionIframe,omitempty"`
	RevocationEndpoint    string `json:"revocationEndpoint,omitempty" yaml:"revocationEndpoint,omitempty"`
	IntrospectionEndpoint string `json:"introspectionEndpoint,omitempty" yaml:"introspectionEndpoint,omitempty"`
	PAREndpoint           string `json:"parEndpoint,omitempty" yaml:"parEndpoint,omitempty"`
}

// discoveryDocument is the subset of the OpenID provider metadata that is
// kept.
//
// See: https://openid.net/specs/openid-connect-discovery-1_0.html#ProviderMetadata
type discoveryDocument struct {
	Issuer                             string `json:"issuer"`
	JWKSURI                            string `json:"jwks_uri"`
	AuthorizationEndpoint              string `json:"authorization_endpoint"`
	TokenEndpoint                      string `json:"token_endpoint"`
	UserInfoEndpoint                   string `json:"userinfo_endpoint"`
	EndSessionEndpoint                 string `json:"end_session_endpoint"`
	CheckSessionIframe                 string `json:"check_session_iframe"`
	RevocationEndpoint                 string `json:"revocation_endpoint"`
	IntrospectionEndpoint              string `json:"introspection_endpoint"`
	PushedAuthorizationRequestEndpoint string `json:"pushed_authorization_request_endpoint"`
}

func (d discoveryDocument) endpoints() Endpoints {
	return Endpoints{
		Issuer:                d.Issuer,
		JWKSURI:               d.JWKSURI,
		AuthorizationEndpoint: d.AuthorizationEndpoint,
		TokenEndpoint:         d.TokenEndpoint,
		UserInfoEndpoint:      d.UserInfoEndpoint,
		EndSessionEndpoint:    d.EndSessionEndpoint,
		CheckSessionIframe:    d.CheckSessionIframe,
		RevocationEndpoint:    d.RevocationEndpoint,
		IntrospectionEndpoint: d.IntrospectionEndpoint,
		PAREndpoint:           d.PushedAuthorizationRequestEndpoint,
	}
}

// Merge returns e with every non-empty field of overrides applied on top.
func (e Endpoints) Merge(overrides *Endpoints) Endpoints {
	if overrides == nil {
		return e
	}
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&e.Issuer, overrides.Issuer)
	pick(&e.JWKSURI, overrides.JWKSURI)
	pick(&e.AuthorizationEndpoint, overrides.AuthorizationEndpoint)
	pick(&e.TokenEndpoint, overrides.TokenEndpoint)
	pick(&e.UserInfoEndpoint, overrides.UserInfoEndpoint)
	pick(&e.EndSessionEndpoint, overrides.EndSessionEndpoint)
	pick(&e.CheckSessionIframe, overrides.CheckSessionIframe)
	pick(&e.RevocationEndpoint, overrides.RevocationEndpoint)
	pick(&e.IntrospectionEndpoint, overrides.IntrospectionEndpoint)
	pick(&e.PAREndpoint, overrides.PAREndpoint)
	return e
}
