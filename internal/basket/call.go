package basket

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// retryBackoff is the initial pause between eth_call attempts.
var retryBackoff = 200 * time.Millisecond

// ErrNoCode is returned when a read hits an address without a contract behind it.
var ErrNoCode = errors.New("empty result, no contract at address?")

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Too Many Requests") || strings.Contains(s, "-32005")
}

// callWithRetry performs eth_call with small exponential backoff so that
// throttled providers (429 / -32005) do not fail a whole snapshot.
func callWithRetry(ctx context.Context, c ethereum.ContractCaller, to common.Address, data []byte) ([]byte, error) {
	const maxAttempts = 3
	backoff := retryBackoff
	msg := ethereum.CallMsg{To: &to, Data: data}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := c.CallContract(ctx, msg, nil)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if strings.Contains(err.Error(), "execution reverted") {
			break
		}
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			if isRateLimitError(err) {
				backoff *= 2
			}
		}
	}
	return nil, lastErr
}

// classifyCallError returns a concise reason for common eth_call failures.
func classifyCallError(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	switch {
	case isRateLimitError(err):
		return "[RATE_LIMIT] provider throttled the request"
	case strings.Contains(s, "execution reverted"):
		if idx := strings.Index(s, ":"); idx >= 0 && idx+1 < len(s) {
			if r := strings.TrimSpace(s[idx+1:]); r != "" {
				return "[REVERT] " + r
			}
		}
		return "[REVERT] execution reverted"
	case errors.Is(err, ErrNoCode):
		return "[NOT_CONTRACT] no bytecode at address"
	case strings.Contains(s, "abi"):
		return "[UNSUPPORTED] ABI/return type mismatch"
	}
	return "[RPC] " + s
}
