package middleware

import "net/http"

// Middleware wraps an http.HandlerFunc.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// Chain composes middlewares in onion order: Chain(m1, m2, m3) runs
// m1 → m2 → m3 → handler. With no middlewares the handler passes through.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.HandlerFunc) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
