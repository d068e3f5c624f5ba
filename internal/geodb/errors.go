package geodb

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized = errors.New("geodb: unauthorized")
	ErrNotFound     = errors.New("geodb: not found")
)

// RemoteError is a non-2xx answer from the geoDB API or its auth server.
type RemoteError struct {
	Op     string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("geodb %s: upstream status %d: %s", e.Op, e.Status, e.Body)
}

func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}
