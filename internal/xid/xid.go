// Package xid generates row ids of the form prefix-unixnano-randomhex.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns a fresh id for the given prefix. The timestamp keeps ids
// roughly sortable by creation time; the random suffix disambiguates ids
// minted within the same nanosecond. When the random source fails the
// timestamp alone still yields a usable id.
func New(prefix string) string {
	now := time.Now().UnixNano()
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Sprintf("%s-%d", prefix, now)
	}
	return fmt.Sprintf("%s-%d-%s", prefix, now, hex.EncodeToString(buf[:]))
}
