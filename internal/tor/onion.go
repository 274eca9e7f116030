package tor

import (
	"encoding/base32"
	"fmt"
	"net"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// OnionSuffix is the reserved top-level domain of onion services.
const OnionSuffix = ".onion"

const (
	onionV3Version = 0x03
	pubkeySize     = 32
)

var (
	onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
	onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)
)

// checksumPrefix is the constant prefix of the v3 address checksum input.
var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host (optionally with a port) is under the
// onion top-level domain. Subdomains of an onion service count.
func IsOnionHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.HasSuffix(strings.ToLower(strings.TrimSuffix(host, ".")), OnionSuffix)
}

// serviceAddress reduces "sub.name.onion:80" to "name.onion".
func serviceAddress(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	labels := strings.Split(strings.ToLower(host), ".")
	if len(labels) < 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// IsValidV3Address reports whether address is a v3 onion address with a
// correct checksum and version byte.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	raw := strings.ToUpper(strings.TrimSuffix(address, OnionSuffix))
	decoded, err := base32.StdEncoding.DecodeString(raw)
	if err != nil || len(decoded) != pubkeySize+3 {
		return false
	}

	pubkey, checksum, version := decoded[:pubkeySize], decoded[pubkeySize:pubkeySize+2], decoded[pubkeySize+2]
	if version != onionV3Version {
		return false
	}
	want := v3Checksum(pubkey, version)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

// v3Checksum is the first two bytes of SHA3-256(".onion checksum" || pubkey || version).
func v3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	sum := sha3.Sum256(data)
	return sum[:2]
}

// IsV2Address reports whether address has the retired 16 character format.
func IsV2Address(address string) bool {
	return onionV2Pattern.MatchString(strings.ToLower(address))
}

// ValidateHost checks that an onion host names a reachable kind of service.
// Subdomains and ports are allowed; the service label must be a valid v3
// address. Seeds are validated with it before a crawl starts.
func ValidateHost(host string) error {
	addr := serviceAddress(host)
	switch {
	case IsValidV3Address(addr):
		return nil
	case IsV2Address(addr):
		return fmt.Errorf("%w: %s", ErrV2AddressDeprecated, addr)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidOnionAddress, host)
	}
}

// V3Address computes the onion address of an ed25519 public key.
func V3Address(pubkey []byte) (string, error) {
	if len(pubkey) != pubkeySize {
		return "", fmt.Errorf("%w: public key must be %d bytes", ErrInvalidOnionAddress, pubkeySize)
	}

	data := make([]byte, 0, pubkeySize+3)
	data = append(data, pubkey...)
	data = append(data, v3Checksum(pubkey, onionV3Version)...)
	data = append(data, onionV3Version)

	return strings.ToLower(base32.StdEncoding.EncodeToString(data)) + OnionSuffix, nil
}
