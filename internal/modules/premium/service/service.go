package premium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	premiumRepo "bazhay.app/wishlist/internal/modules/premium/repository"
	"bazhay.app/wishlist/pkg/circuitbreaker"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Checker answers whether a user currently holds the premium entitlement.
type Checker interface {
	IsPremium(ctx context.Context, userID uuid.UUID) (bool, error)
}

type repositoryChecker struct {
	repo premiumRepo.PremiumRepository
	now  func() time.Time
}

func NewRepositoryChecker(repo premiumRepo.PremiumRepository) Checker {
	return &repositoryChecker{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (c *repositoryChecker) IsPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	p, err := c.repo.FindByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("find premium: %w", err)
	}
	if p == nil {
		return false, nil
	}
	return p.IsActive(c.now()), nil
}

var ErrUnexpectedStatus = errors.New("unexpected status from premium service")

// RemoteChecker asks the payments service, behind a circuit breaker.
type RemoteChecker struct {
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

func NewRemoteChecker(baseURL string, log *zap.Logger) *RemoteChecker {
	return &RemoteChecker{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		cb: circuitbreaker.NewCircuitBreaker("premium-service", log),
	}
}

type premiumStatus struct {
	IsPremium bool `json:"is_premium"`
}

func (c *RemoteChecker) IsPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/users/%s/premium", c.baseURL, userID), nil)
		if err != nil {
			return false, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return false, err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
		case http.StatusNotFound:
			return false, nil
		default:
			return false, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		}

		var status premiumStatus
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return false, fmt.Errorf("decode premium status: %w", err)
		}
		return status.IsPremium, nil
	})
	if err != nil {
		return false, fmt.Errorf("premium check for %s: %w", userID, err)
	}
	return result.(bool), nil
}
