//go:build e2e

package session_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/aichef/pkg/authsdk"
)

/*
 * Keycloak container setup and a scripted browser for session end-to-end
 * tests. One realm is provisioned per container.
 */

const (
	keycloakImage = "quay.io/keycloak/keycloak:26.0"

	adminUsername = "admin"
	adminPassword = "admin"

	realmName   = "AIChef"
	clientID    = "ai-chef"
	redirectURL = "http://chef.local/v1/session/callback"

	userName     = "ann"
	userPassword = "ann-secret-123"
	userEmail    = "a@x.com"
)

var formAction = regexp.MustCompile(`<form[^>]+id="kc-form-login"[^>]+action="([^"]+)"`)

// setupKeycloak starts Keycloak in dev mode, provisions the realm and
// returns the base URL.
func setupKeycloak(t *testing.T) (string, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        keycloakImage,
		ExposedPorts: []string{"8080/tcp"},
		Cmd:          []string{"start-dev"},
		Env: map[string]string{
			"KC_BOOTSTRAP_ADMIN_USERNAME": adminUsername,
			"KC_BOOTSTRAP_ADMIN_PASSWORD": adminPassword,
			"KC_HTTP_ENABLED":             "true",
		},
		WaitingFor: wait.ForHTTP("/realms/master").
			WithPort("8080/tcp").
			WithStartupTimeout(3 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	provisionRealm(t, baseURL)
	return baseURL, cleanup
}

// provisionRealm creates the realm, a public PKCE client and one user
// through the admin REST API.
func provisionRealm(t *testing.T, baseURL string) {
	t.Helper()

	admin, err := authsdk.NewSDKClient(baseURL, "master").PasswordGrant(
		t.Context(), "admin-cli", adminUsername, url.Values{"password": {adminPassword}},
	)
	require.NoError(t, err)

	adminPost(t, baseURL, admin.AccessToken, "/admin/realms", map[string]any{
		"realm":   realmName,
		"enabled": true,
	})

	adminPost(t, baseURL, admin.AccessToken, "/admin/realms/"+realmName+"/clients", map[string]any{
		"clientId":                  clientID,
		"publicClient":              true,
		"standardFlowEnabled":       true,
		"directAccessGrantsEnabled": true,
		"redirectUris":              []string{"http://chef.local/*"},
		"attributes": map[string]string{
			"pkce.code.challenge.method": "S256",
			"post.logout.redirect.uris":  "+",
		},
	})

	adminPost(t, baseURL, admin.AccessToken, "/admin/realms/"+realmName+"/users", map[string]any{
		"username":      userName,
		"enabled":       true,
		"email":         userEmail,
		"emailVerified": true,
		"firstName":     "Ann",
		"lastName":      "Lee",
		"credentials": []map[string]any{{
			"type":      "password",
			"value":     userPassword,
			"temporary": false,
		}},
	})
}

func adminPost(t *testing.T, baseURL, token, path string, body any) {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, baseURL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	msg, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "POST %s: %s", path, msg)
}

// signIn plays the browser: it follows loginURL to the Keycloak login form,
// submits the credentials and returns the callback URL Keycloak redirects
// to, without following it.
func signIn(t *testing.T, loginURL string) string {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	browser := &http.Client{
		Jar:     jar,
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if req.URL.Host == "chef.local" {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	// 1. Load the login form
	resp, err := browser.Get(loginURL)
	require.NoError(t, err)
	page, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(page))

	m := formAction.FindSubmatch(page)
	require.NotNil(t, m, "login form not found")
	action := html.UnescapeString(string(m[1]))

	// 2. Submit the credentials
	resp, err = browser.PostForm(action, url.Values{
		"username":     {userName},
		"password":     {userPassword},
		"credentialId": {""},
	})
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	callback := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(callback, redirectURL), callback)
	return callback
}
