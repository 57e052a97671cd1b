package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache holds downloaded archive payloads keyed by archive URL, so an
// overlapping refresh does not download the same 15-minute export twice
type Cache interface {
	Get(archiveURL string) ([]byte, bool)
	Set(archiveURL string, payload []byte, ttl time.Duration)
	Evict(archiveURL string)
	Len() int
}

// Key derives the storage key for an archive URL
func Key(archiveURL string) string {
	hash := sha256.Sum256([]byte(archiveURL))
	return "gdeltwatch:archive:v1:" + hex.EncodeToString(hash[:])
}
