package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/meshtree/pkg/models"
)

// FrameSize is the length of every encoded message.
const FrameSize = 34

const (
	offSignal   = 0
	offRole     = 1
	offRank     = 2
	offClock    = 4
	offSlotFrom = 12
	offSlotTo   = 20
	offSource   = 28
	offValue    = 30

	rankAbsent = 0xFFFF
)

var (
	ErrFrameSize     = errors.New("wire: bad frame size")
	ErrUnknownSignal = errors.New("wire: unknown signal")
)

// Encode lays msg out in a FrameSize buffer. Fields the signal does not use
// are zero, and the rank field is 0xFFFF when absent.
func Encode(msg Message) []byte {
	buf := make([]byte, FrameSize)
	buf[offSignal] = byte(msg.Signal())
	putRank(buf, nil)

	switch m := msg.(type) {
	case JoinRequest:
		buf[offRole] = byte(m.Role)
		putRank(buf, m.Rank)
	case JoinOffer:
		buf[offRole] = byte(m.Role)
		putRank(buf, &m.Rank)
	case RankUpdate:
		putRank(buf, &m.Rank)
	case ClockReply:
		putClock(buf, m.Clock)
	case ClockBroadcast:
		putClock(buf, m.Clock)
	case SlotAssign:
		putClock(buf, m.Clock)
		binary.BigEndian.PutUint64(buf[offSlotFrom:], uint64(m.Slot.Start))
		binary.BigEndian.PutUint64(buf[offSlotTo:], uint64(m.Slot.End))
	case SampleNotify:
		putClock(buf, m.Clock)
		putSample(buf, m.SourceID, m.Value)
	case SampleReport:
		putClock(buf, m.Clock)
		putSample(buf, m.SourceID, m.Value)
	}
	return buf
}

// Decode is the inverse of Encode. It fails only on a frame of the wrong
// length or a signal outside the catalogue.
func Decode(buf []byte) (Message, error) {
	if len(buf) != FrameSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(buf), FrameSize)
	}
	sig := Signal(buf[offSignal])
	role := models.Role(buf[offRole])
	rank := getRank(buf)
	clock := int64(binary.BigEndian.Uint64(buf[offClock:]))

	switch sig {
	case SignalJoinRequest:
		return JoinRequest{Role: role, Rank: rank}, nil
	case SignalJoinOffer:
		return JoinOffer{Role: role, Rank: derefRank(rank)}, nil
	case SignalJoinAck:
		return JoinAck{}, nil
	case SignalLeaveNotice:
		return LeaveNotice{}, nil
	case SignalLivenessPing:
		return LivenessPing{}, nil
	case SignalLivenessPong:
		return LivenessPong{}, nil
	case SignalClockRequest:
		return ClockRequest{}, nil
	case SignalClockReply:
		return ClockReply{Clock: clock}, nil
	case SignalClockBroadcast:
		return ClockBroadcast{Clock: clock}, nil
	case SignalRankUpdate:
		return RankUpdate{Rank: derefRank(rank)}, nil
	case SignalSlotAssign:
		return SlotAssign{
			Slot: models.Slot{
				Start: int64(binary.BigEndian.Uint64(buf[offSlotFrom:])),
				End:   int64(binary.BigEndian.Uint64(buf[offSlotTo:])),
			},
			Clock: clock,
		}, nil
	case SignalSlotTrigger:
		return SlotTrigger{}, nil
	case SignalSampleNotify:
		src, val := getSample(buf)
		return SampleNotify{SourceID: src, Value: val, Clock: clock}, nil
	case SignalSampleReport:
		src, val := getSample(buf)
		return SampleReport{SourceID: src, Value: val, Clock: clock}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownSignal, uint8(sig))
}

func putRank(buf []byte, rank *int) {
	v := uint16(rankAbsent)
	if rank != nil && *rank >= 0 && *rank < rankAbsent {
		v = uint16(*rank)
	}
	binary.BigEndian.PutUint16(buf[offRank:], v)
}

func getRank(buf []byte) *int {
	v := binary.BigEndian.Uint16(buf[offRank:])
	if v == rankAbsent {
		return nil
	}
	r := int(v)
	return &r
}

func derefRank(r *int) int {
	if r == nil {
		return -1
	}
	return *r
}

func putClock(buf []byte, clock int64) {
	binary.BigEndian.PutUint64(buf[offClock:], uint64(clock))
}

func putSample(buf []byte, src uint16, val int32) {
	binary.BigEndian.PutUint16(buf[offSource:], src)
	binary.BigEndian.PutUint32(buf[offValue:], uint32(val))
}

func getSample(buf []byte) (uint16, int32) {
	return binary.BigEndian.Uint16(buf[offSource:]), int32(binary.BigEndian.Uint32(buf[offValue:]))
}
