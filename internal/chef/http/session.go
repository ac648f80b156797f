package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/aichef/pkg/authsdk"
	"github.com/aussiebroadwan/aichef/pkg/httpx"
	"github.com/aussiebroadwan/aichef/pkg/session"
	"github.com/aussiebroadwan/aichef/pkg/slogx"
	"github.com/aussiebroadwan/aichef/pkg/sso"
)

// SessionResponse is the session state as the UI sees it.
type SessionResponse struct {
	session.Snapshot

	Authenticated bool `json:"authenticated"`
	Loading       bool `json:"loading"`
}

// RedirectResponse carries a URL the browser should be sent to. It is empty
// when there is nowhere to go.
type RedirectResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// SessionHandler serves the /v1/session endpoints.
type SessionHandler struct {
	Session       SessionService
	LoginRedirect string
}

// HandleGet godoc
//
//	@Summary		Current session
//	@Description	Returns the session status, identity source, decoded user profile and whether the process
//	@Description	runs inside a host app container.
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	SessionResponse
//	@Router			/v1/session [get].
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	snap := h.Session.Snapshot()

	httpx.WriteJSON(w, http.StatusOK, SessionResponse{
		Snapshot:      snap,
		Authenticated: snap.IsAuthenticated(),
		Loading:       snap.IsLoading(),
	})
}

// HandleLogin godoc
//
//	@Summary		Start a web SSO login
//	@Description	GET redirects the browser to the identity provider. POST returns the URL instead so a UI can
//	@Description	navigate itself. Inside a host container, or with an embedded session, there is no login to start.
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	RedirectResponse	"POST only"
//	@Success		302	"Redirect to the identity provider"
//	@Failure		409	{object}	httpx.ErrorBody	"host_container"
//	@Failure		502	{object}	httpx.ErrorBody	"provider_unavailable"
//	@Failure		503	{object}	httpx.ErrorBody	"sso_unavailable"
//	@Router			/v1/session/login [get]
//	@Router			/v1/session/login [post].
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	loginURL, err := h.Session.Login(ctx)
	if err != nil {
		log.Warn("failed to start login", "error", err)
		writeSessionError(w, err)
		return
	}

	if loginURL == "" {
		httpx.WriteError(w, http.StatusConflict, "host_container",
			"sign-in is handled by the host app")
		return
	}

	if r.Method == http.MethodPost {
		httpx.WriteJSON(w, http.StatusOK, RedirectResponse{RedirectURL: loginURL})
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, loginURL, http.StatusFound)
}

// HandleCallback godoc
//
//	@Summary		Web SSO callback
//	@Description	The identity provider redirects here after the user signed in. The authorization code is
//	@Description	exchanged, the pending login consumed and the browser sent on to the session view.
//	@Tags			Session
//	@Param			code	query	string	false	"Authorization code"
//	@Param			state	query	string	false	"State issued by /v1/session/login"
//	@Param			error	query	string	false	"Error returned by the provider"
//	@Success		302		"Login completed"
//	@Failure		400		{object}	httpx.ErrorBody	"invalid_request, invalid_state or the provider error"
//	@Failure		409		{object}	httpx.ErrorBody	"host_container"
//	@Failure		502		{object}	httpx.ErrorBody	"login_failed"
//	@Router			/v1/session/callback [get].
func (h *SessionHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	// 1. Make sure the provider actually answered
	callbackURL := r.URL.String()
	if !authsdk.HasAuthorizationResponse(callbackURL) {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"callback carries no authorization response")
		return
	}

	// 2. Exchange the code; the pending login is consumed either way
	if err := h.Session.CompleteLogin(ctx, callbackURL); err != nil {
		log.Warn("failed to complete login", "error", err)
		writeSessionError(w, err)
		return
	}

	log.Info("login completed")

	// 3. Send the browser on
	httpx.NoCache(w)
	http.Redirect(w, r, h.LoginRedirect, http.StatusFound)
}

// HandleLogout godoc
//
//	@Summary		Sign out
//	@Description	Clears the credentials for either identity source. For web SSO the response carries the
//	@Description	provider logout URL that ends the provider session too.
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	RedirectResponse
//	@Router			/v1/session/logout [post].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	logoutURL := h.Session.Logout(r.Context())

	slogx.FromContext(r.Context()).Info("signed out")
	httpx.WriteJSON(w, http.StatusOK, RedirectResponse{RedirectURL: logoutURL})
}

// writeSessionError maps controller and provider failures onto the local
// error shape.
func writeSessionError(w http.ResponseWriter, err error) {
	var cbErr *authsdk.CallbackError

	switch {
	case errors.Is(err, session.ErrHostContainer):
		httpx.WriteError(w, http.StatusConflict, "host_container",
			"sign-in is handled by the host app")
	case errors.Is(err, session.ErrNoSSO):
		httpx.WriteError(w, http.StatusServiceUnavailable, "sso_unavailable",
			"web sso is not configured")
	case errors.Is(err, session.ErrClosed):
		httpx.WriteError(w, http.StatusServiceUnavailable, "shutting_down", "")
	case errors.As(err, &cbErr):
		httpx.WriteError(w, http.StatusBadRequest, cbErr.Code, cbErr.Description)
	case errors.Is(err, sso.ErrStateMismatch):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_state",
			"login expired or was already completed")
	case errors.Is(err, sso.ErrDiscovery):
		httpx.WriteError(w, http.StatusBadGateway, "provider_unavailable",
			"identity provider unreachable")
	default:
		httpx.WriteError(w, http.StatusBadGateway, "login_failed", "")
	}
}
