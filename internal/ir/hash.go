package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/roach88/pixbridge/internal/native"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCall   = "pixbridge/call/v1"
	DomainResult = "pixbridge/result/v1"
	DomainImage  = "pixbridge/image/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CallHash identifies a call by what was asked for: the operation and its
// arguments. Handles contribute their description, so two calls on equal
// images hash alike. Returns error if the arguments cannot be canonically
// marshaled.
func CallHash(operation string, instance IRValue, positional IRArray, options IRObject) (string, error) {
	if instance == nil {
		instance = IRNull{}
	}
	if positional == nil {
		positional = IRArray{}
	}
	if options == nil {
		options = IRObject{}
	}
	obj := IRObject{
		"operation":  IRString(operation),
		"instance":   instance,
		"positional": positional,
		"options":    options,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("CallHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCall, canonical), nil
}

// ResultHash computes the hash of a harvested result map.
func ResultHash(result IRObject) (string, error) {
	canonical, err := MarshalCanonical(result)
	if err != nil {
		return "", fmt.Errorf("ResultHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainResult, canonical), nil
}

// ImageDigest hashes an image's header and samples. The digest is short
// enough to read in traces.
func ImageDigest(im *native.Image) string {
	h := sha256.New()
	h.Write([]byte(DomainImage))
	h.Write([]byte{0x00})
	fmt.Fprintf(h, "%d:%d:%d:%s:%s\x00", im.Width, im.Height, im.Bands, im.Format, im.Interpretation)
	var buf [8]byte
	for _, v := range im.Samples() {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// MustCallHash is like CallHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCallHash(operation string, instance IRValue, positional IRArray, options IRObject) string {
	h, err := CallHash(operation, instance, positional, options)
	if err != nil {
		panic(err)
	}
	return h
}
