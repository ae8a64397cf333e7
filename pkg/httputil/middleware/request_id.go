package middleware

import (
	"context"
	"math/big"
	"net/http"

	"github.com/edgeflare/pglist/pkg/httputil"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-Id"

	maxRequestIDLength = 1024
)

// RequestID keeps a client supplied X-Request-Id of 1 to 1024 characters and
// otherwise generates one. The id is echoed in the response header and stored
// in the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" || len(reqID) > maxRequestIDLength {
			reqID = NewRequestID()
		}

		ctx := context.WithValue(r.Context(), httputil.RequestIDCtxKey, reqID)
		w.Header().Set(RequestIDHeader, reqID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NewRequestID returns "req-" followed by 20 base-36 characters drawn from a
// random UUID.
func NewRequestID() string {
	u := uuid.New()
	s := new(big.Int).SetBytes(u[:]).Text(36)
	for len(s) < 20 {
		s = "0" + s
	}
	return "req-" + s[:20]
}
