// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

const successHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>OIDC Authentication Succeeded</title>
</head>
<body>
  <h1>Authentication succeeded</h1>
  <p>You may close this window and return to the terminal.</p>
</body>
</html>
`

const loggedOffHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>OIDC Session Ended</title>
</head>
<body>
  <h1>Signed out</h1>
  <p>You may close this window.</p>
</body>
</html>
`
