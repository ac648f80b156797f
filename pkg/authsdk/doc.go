/*
Package authsdk is a small client for the token endpoints of a Keycloak realm.

# Overview

The session layer needs three things from the identity provider outside the
browser redirect flow: exchanging a host-app assertion for tokens, renewing
tokens with a refresh token, and revoking a refresh token on logout. SDKClient
covers exactly those, all as form-encoded POSTs to the realm's OpenID Connect
endpoints:

	client := authsdk.NewSDKClient("http://keycloak.ismit.ru", "AIChef")

	// Exchange a host-app assertion
	tokens, err := client.PasswordGrant(ctx, "ai-chef", "ann", url.Values{
		"id":        {"42"},
		"auth_date": {"1700000000"},
		"hash":      {"..."},
	})

	// Renew
	tokens, err = client.RefreshGrant(ctx, "ai-chef", tokens.RefreshToken)

	// Revoke
	err = client.RevokeToken(ctx, "ai-chef", tokens.RefreshToken)

# Errors

Non-2xx responses are returned as *OAuth2Error. Use errors.As to inspect the
code, or IsInvalidGrant for the common "refresh token is dead" check:

	if authsdk.IsInvalidGrant(err) {
		// session is over, log out
	}

# PKCE

GeneratePKCEChallenge and ParseAuthorizationCallback support the
authorization code flow driven by package sso.
*/
package authsdk
