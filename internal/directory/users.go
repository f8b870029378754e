package directory

import (
	"context"
	"fmt"
	"net/http"

	"tienda-orders/internal/domain"
)

// UserClient reads user snapshots from the users service.
type UserClient struct {
	*httpClient
	fallback domain.UserSnapshot
}

// NewUserClient falls back to an inactive user when the service is unreachable.
func NewUserClient(opts Options) *UserClient {
	return &UserClient{
		httpClient: newHTTPClient("users", opts),
		fallback:   domain.UserSnapshot{Active: false},
	}
}

func (c *UserClient) Get(ctx context.Context, id int64) Result[domain.UserSnapshot] {
	var user domain.UserSnapshot
	status, err := c.do(ctx, "get", http.MethodGet, fmt.Sprintf("/users/%d", id), nil, &user)
	if err == nil && status != http.StatusOK && status != http.StatusNotFound {
		err = fmt.Errorf("%w: get returned %d", errDependency, status)
	}
	if err != nil {
		c.logger.Printf("users client: get id=%d unavailable, using fallback: %v", id, err)
		stub := c.fallback
		stub.ID = id
		c.observe(OutcomeUnavailable)
		return unavailable(stub, err)
	}
	if status == http.StatusNotFound {
		c.observe(OutcomeNotFound)
		return notFound(domain.UserSnapshot{ID: id})
	}
	c.observe(OutcomeOK)
	return ok(user)
}
