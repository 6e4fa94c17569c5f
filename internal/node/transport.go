package node

import (
	"github.com/meshtree/internal/wire"
	"github.com/meshtree/pkg/models"
)

// FrameTransmitter carries encoded payloads to a neighbor, or to every
// neighbor when dst is null.
type FrameTransmitter interface {
	Transmit(dst models.Address, payload []byte) error
}

type encodingTransport struct {
	link FrameTransmitter
}

// NewEncodingTransport adapts a payload transmitter into a Transport that
// puts messages on the wire in their fixed frame layout.
func NewEncodingTransport(link FrameTransmitter) Transport {
	return encodingTransport{link: link}
}

func (t encodingTransport) Send(msg wire.Message, dst models.Address) error {
	return t.link.Transmit(dst, wire.Encode(msg))
}
