package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/sessions"
	"github.com/adampresley/imagecaptioning/cmd/website/internal/authcookie"
	"github.com/adampresley/imagecaptioning/cmd/website/internal/viewmodels"
	"github.com/adampresley/imagecaptioning/pkg/identity"
	"github.com/adampresley/imagecaptioning/pkg/models"
	"github.com/adampresley/imagecaptioning/pkg/sessiongate"
)

/*
newSessionGateMiddleware gives every request its own identity client
backed by the session cookie, waits for the first session notification,
and lets the gate decide whether the requested view renders or the
browser goes elsewhere.
*/
func newSessionGateMiddleware(backend identity.Backend, sessionService sessions.Session[*models.AuthSession], excludedPaths []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			/*
			 * If this path is excluded, keep going.
			 */
			for _, excludedPath := range excludedPaths {
				if strings.HasPrefix(path, excludedPath) {
					next.ServeHTTP(w, r)
					return
				}
			}

			client := identity.NewClient(backend, authcookie.New(sessionService, w, r))
			gate := sessiongate.New(client)
			defer gate.Close()

			client.Start(r.Context())
			outcome := gate.Decide(path)

			switch outcome.Decision {
			case sessiongate.DecisionWait:
				w.Header().Set("Retry-After", "1")
				httphelpers.WriteText(w, http.StatusServiceUnavailable, "Loading...")
				return

			case sessiongate.DecisionRedirect:
				slog.Debug("session gate redirect", "path", path, "location", outcome.Location)
				http.Redirect(w, r, outcome.Location, http.StatusFound)
				return
			}

			ctx := context.WithValue(r.Context(), viewmodels.IdentityClientContextKey, client)
			ctx = context.WithValue(ctx, viewmodels.AuthSessionContextKey, gate.Session())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
