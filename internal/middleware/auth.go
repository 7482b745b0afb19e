package middleware

import (
	"crypto/subtle"
	"net/http"
)

// Realm is announced in the WWW-Authenticate challenge.
const Realm = "Webcam Access"

// BasicAuth requires HTTP Basic credentials matching user and pass. CORS
// preflight requests and the exempt paths pass through unauthenticated.
func BasicAuth(user, pass string, exempt ...string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		open[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			u, p, ok := r.BasicAuth()
			if !ok || !credentialsMatch(u, p, user, pass) {
				w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`"`)
				w.Header().Set("Content-Type", "text/plain")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte("401 Unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func credentialsMatch(gotUser, gotPass, wantUser, wantPass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(gotUser), []byte(wantUser))
	passOK := subtle.ConstantTimeCompare([]byte(gotPass), []byte(wantPass))
	return userOK&passOK == 1
}
