package tables

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ChecksumPrefix names the digest used for processed objects.
const ChecksumPrefix = "sha256:"

// ErrChecksumMismatch is returned when an object no longer hashes to the
// checksum recorded when it was published.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ComputeChecksum returns the digest of an encoded record set.
func ComputeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return ChecksumPrefix + hex.EncodeToString(sum[:])
}

// VerifyChecksum checks data against the checksum recorded at publish time.
func VerifyChecksum(data []byte, recorded string) error {
	if got := ComputeChecksum(data); got != recorded {
		return fmt.Errorf("%w: recorded %s, computed %s", ErrChecksumMismatch, recorded, got)
	}
	return nil
}
