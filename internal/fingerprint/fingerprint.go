// Package fingerprint computes content fingerprints used as equality
// proxies between the local and remote sides. The remote protocol
// compares the same MD5 digest, so the algorithm is fixed.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
)

// Sum returns the lowercase hex MD5 digest of data.
func Sum(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Reader reads a named file's content.
type Reader interface {
	Read(name string) ([]byte, error)
}

// SameContent reports whether the stored file matches data. Any read
// failure yields false: "cannot prove sameness" must trigger conflict
// handling rather than silently skipping a transfer.
func SameContent(r Reader, name string, data []byte) bool {
	existing, err := r.Read(name)
	if err != nil {
		return false
	}
	return Sum(existing) == Sum(data)
}
