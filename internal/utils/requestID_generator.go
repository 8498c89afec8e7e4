package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateRequestID returns a sortable request id: a nanosecond timestamp
// prefix for eyeballing log order, a random UUID for uniqueness.
func GenerateRequestID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString())
}
