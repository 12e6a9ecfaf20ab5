package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/notify-engine/internal/model"
)

// AuthError indicates that the bearer credential was rejected by the
// backend. It is returned when a 401 response is received.
type AuthError struct {
	Endpoint string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Endpoint, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ThreadFeed retrieves the full snapshot of conversation threads
// visible to the holder of the credential. Retry and backoff for
// transient failures live behind this interface, not in the caller.
type ThreadFeed interface {
	FetchThreads(ctx context.Context, credential string) ([]model.Thread, error)
}

// ResourceFeed retrieves the full snapshot of library resources
// visible to the holder of the credential.
type ResourceFeed interface {
	FetchResources(ctx context.Context, credential string) ([]model.Resource, error)
}
