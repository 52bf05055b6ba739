package storage

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// hasherFor infers the digest algorithm from the length of a hex checksum.
func hasherFor(checksum string) (func() hash.Hash, bool) {
	if _, err := hex.DecodeString(checksum); err != nil {
		return nil, false
	}
	switch len(checksum) {
	case 2 * md5.Size:
		return md5.New, true
	case 2 * sha1.Size:
		return sha1.New, true
	case 2 * sha256.Size:
		return sha256.New, true
	default:
		return nil, false
	}
}

// hashStream digests r without buffering it.
func hashStream(r io.Reader, newHash func() hash.Hash) (string, error) {
	h := newHash()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash object: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
