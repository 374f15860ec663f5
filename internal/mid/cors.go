package mid

import (
	"context"
	"net/http"

	"github.com/ecashpulse/pulse/internal/platform/web"

	"go.opencensus.io/trace"
)

// CORS middleware
func CORS(next web.Handler) web.Handler {

	// Wrap this handler around the next one provided.
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request,
		params map[string]string) error {
		ctx, span := trace.StartSpan(ctx, "internal.mid.CORS")
		defer span.End()

		CORSHandler(w, r, params)

		err := next(ctx, w, r, params)

		// For consistency return the error we received.
		return err
	}

	return h
}

// CORSHandler adds CORS headers. It is also registered as the OPTIONS handler for preflight
// requests.
func CORSHandler(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			"Accept, Authorization, Content-Type, X-Request-ID, X-Trace")
		w.Header().Set("Access-Control-Max-Age", "86400")
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
}
