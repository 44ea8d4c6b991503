package middleware

import (
	"crypto/subtle"
	"log"
	"net/http"
)

const jobSecretHeader = "x-job-secret"

// JobSecret gates the machine-to-machine job endpoints behind a shared
// secret. An empty configured secret rejects everything, so an unset env var
// can never open the endpoints.
func JobSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(jobSecretHeader)
			if secret == "" ||
				subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
				log.Printf("job auth rejected for %s from %s", r.URL.Path, r.RemoteAddr)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
