package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// WebhookSecretHeader carries the shared secret on status callbacks.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookSecret rejects callbacks whose header does not match secret. An
// empty secret disables the check.
func WebhookSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		want := []byte(secret)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(WebhookSecretHeader))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid webhook secret", "code": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
