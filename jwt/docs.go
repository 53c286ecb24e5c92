// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package jwt maps JOSE signing algorithms to verification parameters,
// selects keys out of a JSON Web Key Set and verifies JWS signatures.
package jwt
