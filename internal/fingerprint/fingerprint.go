// Package fingerprint derives collision-resistant message identifiers for
// novel-language messages buffered pending an English translation report.
package fingerprint

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// New derives a message_id from agent_id, timestamp, content, and a random
// salt, so identical content sent at the same instant by the same agent
// never collides. The result is a hex-encoded SHA-256 digest.
func New(agentID string, ts time.Time, content string) string {
	salt := make([]byte, 16)
	_, _ = rand.Read(salt) // crypto/rand.Read only errors on an exhausted entropy source

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%s\x00", agentID, ts.UnixNano(), content)
	h.Write(salt)
	return hex.EncodeToString(h.Sum(nil))
}
