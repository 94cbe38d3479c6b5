package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// AdminGuard requires the X-Admin-Password header to match the configured
// bcrypt hash. hashFn is called per request so config updates take effect
// without a restart. An empty hash locks the guarded endpoints entirely.
func AdminGuard(hashFn func() string) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			hash := hashFn()
			if hash == "" {
				http.Error(w, `{"error":"admin access not configured"}`, http.StatusForbidden)
				return
			}
			password := r.Header.Get("X-Admin-Password")
			if password == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
				http.Error(w, `{"error":"invalid admin credentials"}`, http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
}
