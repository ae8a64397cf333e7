package rest

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/edgeflare/pglist/pkg/httputil"
	"github.com/edgeflare/pglist/pkg/query"
	"go.uber.org/zap"
)

// ErrUnauthorized is returned when a request carries no usable credentials
// for a resource that is not publicly readable.
var ErrUnauthorized = errors.New("not logged in")

// statusOf maps an error to its HTTP status.
func statusOf(err error) int {
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	switch query.KindOf(err) {
	case query.KindInvalidFilter, query.KindInvalidOrder, query.KindInvalidCountMode,
		query.KindInvalidColumn, query.KindInvalidParameter:
		return http.StatusUnprocessableEntity
	case query.KindForbiddenScope:
		return http.StatusForbidden
	case query.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// newErrorToken returns "<unix seconds>+<8 hex digits>", which is sent to
// the client and logged with the error so the two can be matched.
func newErrorToken(now time.Time) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("%d+%s", now.Unix(), hex.EncodeToString(b[:]))
}

// writeError renders err as {"errors": [...], "error_token": "..."}.
// Server-side failures are logged at error level with the cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	token := newErrorToken(time.Now())

	logger := httputil.Logger(r.Context())
	fields := []zap.Field{zap.String("error_token", token), zap.Int("status", status), zap.Error(err)}
	var qe *query.Error
	if errors.As(err, &qe) && qe.Err != nil {
		fields = append(fields, zap.NamedError("cause", qe.Err))
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", fields...)
	} else {
		logger.Info("request rejected", fields...)
	}

	message := err.Error()
	if status == http.StatusInternalServerError && query.KindOf(err) == "" {
		message = "internal server error"
	}
	httputil.JSON(w, status, httputil.ErrorResponse{
		Errors:     []string{message},
		ErrorToken: token,
	})
}
