package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/asrgate/errors"
)

// KeyAuthorizer validates an API key.
type KeyAuthorizer interface {
	Authorize(candidate string) error
}

// ContextKeyAPIKey is where APIKey stores the accepted key.
const ContextKeyAPIKey = "api_key"

// APIKey rejects requests whose header does not carry a known key: 401
// when missing, 403 when unknown.
func APIKey(header string, keys KeyAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(header)
		if err := keys.Authorize(key); err != nil {
			status, body := errorBody(err)
			c.AbortWithStatusJSON(status, body)
			return
		}
		c.Set(ContextKeyAPIKey, key)
		c.Next()
	}
}

func errorBody(err error) (int, apperrors.ErrorResponse) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	return appErr.HTTPStatus, appErr.ToResponse()
}
