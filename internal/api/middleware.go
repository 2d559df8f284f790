// Package api implements the canvas REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"
)

// CredentialHeader carries the caller's model API key.
const CredentialHeader = "X-Api-Key"

type credentialKey struct{}

// CredentialMiddleware stores the request's model credential in its context.
// The X-Api-Key header wins over fallback, the configured default key.
// Requests without either pass through; operations that call the model
// reject them with 401.
func CredentialMiddleware(fallback string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(CredentialHeader))
			if key == "" {
				key = fallback
			}
			if key != "" {
				r = r.WithContext(context.WithValue(r.Context(), credentialKey{}, key))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// credential returns the key stored by CredentialMiddleware.
func credential(r *http.Request) string {
	key, _ := r.Context().Value(credentialKey{}).(string)
	return key
}
