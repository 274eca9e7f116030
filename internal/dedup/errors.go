package dedup

import (
	"errors"
	"fmt"
)

// ErrCacheUnavailable is returned when the backing cache cannot answer.
// The crawl must stop dequeuing when it sees this error, since it can no
// longer guarantee that a URL is fetched only once.
var ErrCacheUnavailable = errors.New("dedup cache unavailable")

// Unavailable wraps err so that errors.Is(err, ErrCacheUnavailable) holds.
// Backends outside this package use it to report their failures.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCacheUnavailable, op, err)
}
