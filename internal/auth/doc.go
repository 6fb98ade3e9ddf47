// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

/*
Package auth provides JWT-based authentication for the Stemma API.

The package covers four concerns:

  - JWTManager issues and validates HS256-signed access and refresh
    tokens. Claims carry the user id as subject, a token_type
    discriminator, and the is_admin flag.
  - PasswordHasher wraps bcrypt with the configured cost.
  - Middleware extracts bearer tokens, places validated claims in the
    request context, and rate limits credential endpoints per client IP.
  - TokenStore persists refresh-token revocations and single-use email
    verification tokens in BadgerDB with TTLs, so expired state
    disappears without scans.

Access tokens are stateless: logout revokes only the refresh token, and
the access token ages out on its own short TTL.
*/
package auth
