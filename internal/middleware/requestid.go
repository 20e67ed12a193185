package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the HTTP header used to propagate the request identifier.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key holding the request id. The intake handlers
	// copy it into every audit row.
	RequestIDKey = "request_id"
)

// validRequestID bounds what a caller may inject into logs and audit rows.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestIDMiddleware returns a Gin handler that gives every request an identifier.
//
// An inbound X-Request-ID is reused when it is at most 128 characters of letters,
// digits and ". _ : -"; anything else is replaced with a fresh UUID v4. The id is
// stored under RequestIDKey and echoed in the response header so callers can match
// their request to the gateway's log line and audit row.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if !validRequestID.MatchString(id) {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
