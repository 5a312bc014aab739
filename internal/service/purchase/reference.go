package purchase

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewReference builds a globally unique order reference: UTC timestamp plus
// a random suffix. Collisions are vanishingly unlikely but not assumed
// impossible: the transactions table still enforces uniqueness.
func NewReference(now time.Time) string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)

	return fmt.Sprintf("BV-%s-%s", now.UTC().Format("20060102150405"), hex.EncodeToString(b))
}
