package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// userKeyLen is the number of hex characters kept from the digest.
const userKeyLen = 32

// UserKey maps a user id to a stable opaque token usable in object keys and
// channel names. Raw ids never leave the process in a key.
func UserKey(userID string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(userID)))
	return hex.EncodeToString(sum[:])[:userKeyLen]
}

// AttachmentName builds the download file name for a job. Anything outside
// [A-Za-z0-9_-] is dropped from the id.
func AttachmentName(jobID string) string {
	var b strings.Builder
	for _, r := range jobID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "mock-pdf.pdf"
	}
	return "mock-pdf-" + b.String() + ".pdf"
}
