// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
oidc is a package for writing OIDC relying parties which run in a user agent
(single page apps and other public clients) using the code flow with PKCE or
the implicit flow.

Primary types provided by the package

* Config: the configuration of one provider (authority, client id, redirect
urls, requested scopes and response type, silent renew and refresh token
settings, custom parameters per request).

* Provider: everything the relying party does with one provider: discovery,
building authorize urls (optionally through pushed authorization requests),
handling the code and implicit callbacks, validating id_tokens, silent renew
and refresh, userinfo, logoff and token revocation.

* Client: several Providers sharing one Storage, addressed by config id.

* Storage: the key/value store all flow state, tokens and user data are kept
in, scoped by config id. See the storage/memory and storage/redis packages.

* TokenValidator: validates id_tokens against the discovered issuer and the
provider's signing keys and returns a ValidationResult naming the failed check.

* SilentRenewCoordinator: the cooperative lock that keeps two renewals of the
same config from running at once.

The oidc.callback package

The callback package includes http.HandlerFuncs which complete the code flow
and the implicit flow for a Provider.

Examples

* OIDC authentication CLI:
https://github.com/hashicorp/oidc-rp/tree/main/oidc/examples/cli/
*/
package oidc
