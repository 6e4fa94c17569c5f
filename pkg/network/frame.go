package network

import (
	"errors"
	"fmt"

	"github.com/meshtree/pkg/models"
)

// headerSize is the source and destination address carried before the payload.
const headerSize = 16

var ErrShortFrame = errors.New("network: short link frame")

// EncodeFrame prefixes payload with the link-layer source and destination.
func EncodeFrame(src, dst models.Address, payload []byte) []byte {
	buf := make([]byte, headerSize+len(payload))
	copy(buf[0:8], src[:])
	copy(buf[8:16], dst[:])
	copy(buf[headerSize:], payload)
	return buf
}

// DecodeFrame splits a link frame into its addresses and payload. The payload
// aliases data.
func DecodeFrame(data []byte) (src, dst models.Address, payload []byte, err error) {
	if len(data) < headerSize {
		return src, dst, nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}
	copy(src[:], data[0:8])
	copy(dst[:], data[8:16])
	return src, dst, data[headerSize:], nil
}
