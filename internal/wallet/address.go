// Package wallet validates Airnode wallet addresses.
package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

var (
	// ErrInvalidAddress is returned for values that are not 20-byte hex addresses.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrChecksumMismatch is returned for mixed-case addresses with a wrong EIP-55 checksum.
	ErrChecksumMismatch = errors.New("address checksum mismatch")
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidateAddress checks that address is a well-formed Ethereum address.
// All-lowercase and all-uppercase addresses carry no checksum and are accepted.
func ValidateAddress(address string) error {
	if !addressPattern.MatchString(address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	hexPart := address[2:]
	if hexPart == strings.ToLower(hexPart) || hexPart == strings.ToUpper(hexPart) {
		return nil
	}
	if checksummed := ChecksumAddress(address); checksummed != address {
		return fmt.Errorf("%w: got %s, expected %s", ErrChecksumMismatch, address, checksummed)
	}
	return nil
}

// ChecksumAddress returns the EIP-55 mixed-case form of a hex address.
func ChecksumAddress(address string) string {
	lower := strings.ToLower(strings.TrimPrefix(address, "0x"))

	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(lower))
	digest := hex.EncodeToString(hash.Sum(nil))

	var b strings.Builder
	b.WriteString("0x")
	for i, c := range lower {
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			b.WriteRune(c - 'a' + 'A')
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// ShortAddress returns the seven hex digits after "0x", lower-cased.
// It is used to name per-Airnode cloud resources.
func ShortAddress(address string) string {
	if len(address) < 9 {
		return strings.ToLower(strings.TrimPrefix(address, "0x"))
	}
	return strings.ToLower(address[2:9])
}
