package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/aichef/pkg/authsdk"
	"github.com/aussiebroadwan/aichef/pkg/httpx"
)

// pingTimeout bounds each readiness check.
const pingTimeout = 2 * time.Second

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe endpoint returning service health status and checks for critical dependencies
//	@Description	Includes uptime, version, the database and identity provider checks and the current session status.
//	@Description	The session status is informational: being signed out does not make the service unready.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	checks map[string]Pinger,
	sess SessionService,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := make(map[string]string, len(checks)+1)
		overallStatus := "ok"
		statusCode := http.StatusOK

		for name, p := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
			err := p.Ping(ctx)
			cancel()

			if err != nil {
				results[name] = "error: " + err.Error()
				overallStatus = "degraded"
				statusCode = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		if sess != nil {
			results["session"] = sess.Snapshot().Status.String()
		}

		response := authsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  results,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
