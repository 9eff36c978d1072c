package middleware

import (
	"net/http"

	"github.com/kbukum/asrgate/util"
)

const defaultMaxBodySize = 200 << 20

// BodySizeLimit restricts the request body to maxSize (e.g. "200MB").
func BodySizeLimit(maxSize string) Middleware {
	size := util.ParseSize(maxSize, defaultMaxBodySize)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, size)
			next.ServeHTTP(w, r)
		})
	}
}
