package crypto

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultNonceTTL is how long a login attempt stays valid.
const DefaultNonceTTL = 60 * time.Second

// NewNonceWithExpiration returns "<uuid>_<expiry epoch millis>".
func NewNonceWithExpiration(ttl time.Duration) string {
	return NewNonceAt(time.Now(), ttl)
}

// NewNonceAt is NewNonceWithExpiration with an explicit clock.
func NewNonceAt(now time.Time, ttl time.Duration) string {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return uuid.NewString() + "_" + strconv.FormatInt(now.Add(ttl).UnixMilli(), 10)
}

// IsNonceExpired reports whether the nonce is past its embedded expiry.
// Anything that cannot be parsed counts as expired.
func IsNonceExpired(nonce string) bool {
	return IsNonceExpiredAt(nonce, time.Now())
}

// IsNonceExpiredAt is IsNonceExpired with an explicit clock.
func IsNonceExpiredAt(nonce string, now time.Time) bool {
	expiry, ok := NonceExpiry(nonce)
	if !ok {
		return true
	}
	return now.After(expiry)
}

// NonceExpiry returns the expiry embedded in nonce.
func NonceExpiry(nonce string) (time.Time, bool) {
	i := strings.LastIndexByte(nonce, '_')
	if i <= 0 || i == len(nonce)-1 {
		return time.Time{}, false
	}

	ms, err := strconv.ParseInt(nonce[i+1:], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
