package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultLoginMaxAttempts = 5
	DefaultLoginWindow      = 15 * time.Minute
)

// reserveScript counts one attempt unless the limit is already reached and
// starts the window on the first attempt. Returns 1 when the attempt may
// proceed, 0 when it is rejected. Rejected attempts are not counted.
var reserveScript = redis.NewScript(`
local c = tonumber(redis.call("GET", KEYS[1]) or "0")
if c >= tonumber(ARGV[2]) then
  return 0
end
c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return 1
`)

// LoginThrottle limits login attempts per email in a fixed window. An
// attempt is counted before the password is checked, so parallel guesses
// cannot all slip past the limit; a successful login resets the counter.
// Key format: login_fail:<email>
// A nil client disables throttling.
type LoginThrottle struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

func NewLoginThrottle(client *redis.Client, maxAttempts int, window time.Duration) *LoginThrottle {
	if maxAttempts <= 0 {
		maxAttempts = DefaultLoginMaxAttempts
	}
	if window <= 0 {
		window = DefaultLoginWindow
	}
	return &LoginThrottle{client: client, maxAttempts: maxAttempts, window: window}
}

// Reserve counts one attempt for email and reports whether it is within the
// limit. On a Redis error it returns true with the error.
func (t *LoginThrottle) Reserve(ctx context.Context, email string) (bool, error) {
	if t.client == nil {
		return true, nil
	}
	ok, err := reserveScript.Run(ctx, t.client, []string{t.key(email)}, t.window.Milliseconds(), t.maxAttempts).Int()
	if err != nil {
		return true, fmt.Errorf("login throttle reserve: %w", err)
	}
	return ok == 1, nil
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, email string) error {
	if t.client == nil {
		return nil
	}
	if err := t.client.Del(ctx, t.key(email)).Err(); err != nil {
		return fmt.Errorf("login throttle reset: %w", err)
	}
	return nil
}

func (t *LoginThrottle) key(email string) string {
	return "login_fail:" + email
}
