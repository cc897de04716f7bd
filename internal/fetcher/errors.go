package fetcher

import (
	"fmt"

	"github.com/stefan-hacks/pygr/internal/errmsg"
)

// FetchFailedError reports a clone/fetch/checkout failure after retries
// are exhausted (spec 4.C, error kind FetchFailed).
type FetchFailedError struct {
	URL string
	Ref string
	Err error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("fetch failed for %s@%s: %v", e.URL, e.Ref, e.Err)
}
func (e *FetchFailedError) Unwrap() error         { return e.Err }
func (e *FetchFailedError) ErrorKind() errmsg.Kind { return errmsg.KindFetchFailed }

// FetchTimeoutError reports the fetch's context deadline expiring before
// a successful attempt (spec 4.C, error kind FetchTimeout).
type FetchTimeoutError struct {
	URL string
	Ref string
}

func (e *FetchTimeoutError) Error() string {
	return fmt.Sprintf("fetch timed out for %s@%s", e.URL, e.Ref)
}
func (e *FetchTimeoutError) ErrorKind() errmsg.Kind { return errmsg.KindFetchTimeout }
