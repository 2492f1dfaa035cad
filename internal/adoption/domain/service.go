package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	probedomain "github.com/globalping/backoffice/internal/probe/domain"
)

var (
	ErrInvalidIP   = errors.New("invalid_ip")
	ErrInvalidCode = errors.New("invalid_code")
	ErrNoPending   = errors.New("no_pending_adoption")
)

// TooManyRequestsError reports a throttled adoption request with the delay
// after which the client may retry.
type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func (e *TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter)
}

type Service interface {
	// SendCode asks the control plane to display a verification code on the
	// probe at the given IP. The code stays valid for 30 minutes.
	SendCode(ctx context.Context, userID snowflake.ID, ip string) error
	// VerifyCode consumes the pending code and adopts the probe. A code
	// verifies at most once.
	VerifyCode(ctx context.Context, userID snowflake.ID, ip, code string) (*probedomain.Probe, error)
	// AdoptByToken adopts the probe at the given IP for the owner of the
	// adoption token. Used by probes on the owner's own network.
	AdoptByToken(ctx context.Context, token, ip string) (*probedomain.Probe, error)
}
