package checkout

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	orderNumberPrefix    = "ORD"
	orderNumberSuffixLen = 4
	base36Alphabet       = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// GenerateOrderNumber builds a public order number: the ORD prefix, the
// last 8 digits of the epoch-millis timestamp, and a 4-character random
// base36 suffix. Uniqueness is enforced by the database; a collision is
// handled by regenerating, not by failing.
func GenerateOrderNumber(now time.Time) (string, error) {
	millis := fmt.Sprintf("%d", now.UnixMilli())
	if len(millis) > 8 {
		millis = millis[len(millis)-8:]
	}

	suffix := make([]byte, orderNumberSuffixLen)
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random suffix: %w", err)
		}
		suffix[i] = base36Alphabet[n.Int64()]
	}

	return orderNumberPrefix + millis + string(suffix), nil
}
