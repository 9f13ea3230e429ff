package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/markchunk/internal/imageload"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *imageload.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns the wait before image fetch attempt n+1: 250ms doubling
// per attempt, capped at 5s, plus up to 50% jitter.
func Backoff(attempt int) time.Duration {
	base := (250 * time.Millisecond) << uint(attempt)
	if base > 5*time.Second || base <= 0 {
		base = 5 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// MaxRetries is the number of load attempts per image.
const MaxRetries = 3
