package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/aussiebroadwan/aichef/pkg/apiclient"
	"github.com/aussiebroadwan/aichef/pkg/httpx"
	"github.com/aussiebroadwan/aichef/pkg/slogx"
)

// maxProxyBody caps how much of an incoming body is forwarded.
const maxProxyBody = 1 << 20

// forwardHeaders are copied from the caller to the business API. The
// caller's Authorization never is: the session supplies the bearer token.
var forwardHeaders = []string{"Accept", "Accept-Language", "Content-Type"}

// ProxyHandler forwards /v1/api/* to the business API namespace through the
// authenticated request layer.
type ProxyHandler struct {
	API Proxy
}

// ServeHTTP godoc
//
//	@Summary		Business API proxy
//	@Description	Forwards the request to the business API under its namespace with the session bearer token.
//	@Description	An expired token is renewed first and a 401 is retried once after a forced renewal.
//	@Description	Upstream answers, errors included, are passed through unchanged.
//	@Tags			API
//	@Param			path	path	string	true	"Path below the API namespace"
//	@Success		200		"Upstream response"
//	@Failure		401		{object}	httpx.ErrorBody	"session_expired"
//	@Failure		502		{object}	httpx.ErrorBody	"bad_gateway"
//	@Failure		503		{object}	httpx.ErrorBody	"api_unavailable"
//	@Router			/v1/api/{path} [get]
//	@Router			/v1/api/{path} [post].
func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.API == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "api_unavailable",
			"no business API configured")
		return
	}

	// 1. Buffer the body so a retry can resend it
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProxyBody))
	if err != nil {
		httpx.WriteError(w, http.StatusRequestEntityTooLarge, "invalid_request", "body too large")
		return
	}
	if len(body) == 0 {
		body = nil
	}

	path := "/" + r.PathValue("path")
	ctx := slogx.With(r.Context(), "api_path", path)
	log := slogx.FromContext(ctx)
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	header := http.Header{}
	for _, k := range forwardHeaders {
		if v := r.Header.Get(k); v != "" {
			header.Set(k, v)
		}
	}
	if id := w.Header().Get("X-Request-ID"); id != "" {
		header.Set("X-Request-ID", id)
	}

	// 2. Send with the session credentials
	resp, err := h.API.Do(ctx, &apiclient.Request{
		Method: r.Method,
		Path:   path,
		Header: header,
		Body:   body,
	})

	var renewErr *apiclient.RenewalError
	switch {
	case errors.As(err, &renewErr):
		log.Warn("credential renewal failed, request not sent", "error", err)
		httpx.WriteError(w, http.StatusUnauthorized, "session_expired",
			"the session could not be renewed, sign in again")
		return
	case resp == nil && err != nil:
		log.Error("business API unreachable", "error", err)
		httpx.WriteError(w, http.StatusBadGateway, "bad_gateway", "")
		return
	}

	// 3. Pass the upstream answer through, status errors included
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	httpx.NoCache(w)
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}
