// AngelaMos | 2026
// servicekey.go

package middleware

import (
	"log/slog"
	"net/http"

	"github.com/sikaplatform/referral-backend/internal/core"
)

const serviceKeyHeader = "X-Service-Key"

// ServiceKeyAuth guards internal routes called by machine services (the
// enrollment workflow and the campaign engine). The caller presents the
// plaintext key; only its argon2id hash is configured here.
func ServiceKeyAuth(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(serviceKeyHeader)
			if key == "" {
				core.JSONError(
					w,
					core.UnauthorizedError("missing service key"),
				)
				return
			}

			ok, err := core.VerifyServiceKey(key, keyHash)
			if err != nil {
				slog.Error("service key hash is malformed", "error", err)
				core.JSONError(
					w,
					core.UnauthorizedError("invalid service key"),
				)
				return
			}

			if !ok {
				core.JSONError(
					w,
					core.UnauthorizedError("invalid service key"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
