package models

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressSize is the width of a link-layer address in bytes.
const AddressSize = 8

// Address is a fixed-width link-layer identifier. The zero value is the
// null address, used both for "no address" and as the broadcast destination.
type Address [AddressSize]byte

// NullAddress is the reserved "no address" value.
var NullAddress Address

// AddressFromID derives an address from a small numeric node id, the way
// simulated motes are addressed.
func AddressFromID(id uint16) Address {
	var a Address
	binary.BigEndian.PutUint16(a[0:2], id)
	binary.BigEndian.PutUint16(a[6:8], id)
	return a
}

func (a Address) IsNull() bool {
	return a == NullAddress
}

// String renders the address as four dot-separated 16-bit hex groups.
func (a Address) String() string {
	var sb strings.Builder
	for i := 0; i < AddressSize; i += 2 {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(hex.EncodeToString(a[i : i+2]))
	}
	return sb.String()
}

// ParseAddress accepts the String form ("0001.0000.0000.0001") or the
// same 16 hex digits without separators.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw := strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	raw = strings.ReplaceAll(raw, ":", "")
	if len(raw) != AddressSize*2 {
		return a, fmt.Errorf("invalid address %q: want %d hex digits", s, AddressSize*2)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
