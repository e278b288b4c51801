package wrapper

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// newEventID allocates a "<millis>-<8 hex>" event id, unique per inspected
// operation (§3).
func newEventID() string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf[:]))
}
