package wire

import (
	"errors"
	"testing"

	"github.com/meshtree/pkg/models"
)

func TestEncodeFixedSize(t *testing.T) {
	for _, sig := range Signals() {
		msg := zeroMessage(sig)
		if got := len(Encode(msg)); got != FrameSize {
			t.Errorf("%s: encoded %d bytes, want %d", sig, got, FrameSize)
		}
	}
}

func TestDecodeEverySignal(t *testing.T) {
	for _, sig := range Signals() {
		msg, err := Decode(Encode(zeroMessage(sig)))
		if err != nil {
			t.Fatalf("%s: decode failed: %v", sig, err)
		}
		if msg.Signal() != sig {
			t.Errorf("decoded signal %s, want %s", msg.Signal(), sig)
		}
	}
}

func TestJoinRequestRankAbsent(t *testing.T) {
	buf := Encode(JoinRequest{Role: models.RoleSensor})
	if buf[offRank] != 0xFF || buf[offRank+1] != 0xFF {
		t.Fatalf("absent rank should encode as 0xFFFF, got %x", buf[offRank:offRank+2])
	}

	msg, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	req := msg.(JoinRequest)
	if req.Rank != nil {
		t.Errorf("expected absent rank, got %d", *req.Rank)
	}
	if req.Role != models.RoleSensor {
		t.Errorf("expected sensor role, got %s", req.Role)
	}
}

func TestSlotAssignKeepsNegativeClock(t *testing.T) {
	in := SlotAssign{Slot: models.Slot{Start: 100, End: 500}, Clock: -42}
	msg, err := Decode(Encode(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.(SlotAssign) != in {
		t.Errorf("got %+v, want %+v", msg, in)
	}
}

func TestSampleValueSigned(t *testing.T) {
	in := SampleReport{SourceID: 7, Value: -1250, Clock: 9000}
	msg, err := Decode(Encode(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.(SampleReport) != in {
		t.Errorf("got %+v, want %+v", msg, in)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode(make([]byte, FrameSize-1)); !errors.Is(err, ErrFrameSize) {
		t.Errorf("short frame: expected ErrFrameSize, got %v", err)
	}

	buf := make([]byte, FrameSize)
	buf[offSignal] = 200
	if _, err := Decode(buf); !errors.Is(err, ErrUnknownSignal) {
		t.Errorf("bad tag: expected ErrUnknownSignal, got %v", err)
	}
}

func TestSignalString(t *testing.T) {
	if SignalClockBroadcast.String() != "clock_broadcast" {
		t.Errorf("unexpected name %q", SignalClockBroadcast.String())
	}
	if Signal(99).String() != "signal(99)" {
		t.Errorf("unexpected name for unknown signal %q", Signal(99).String())
	}
}

func zeroMessage(sig Signal) Message {
	switch sig {
	case SignalJoinRequest:
		return JoinRequest{}
	case SignalJoinOffer:
		return JoinOffer{}
	case SignalJoinAck:
		return JoinAck{}
	case SignalLeaveNotice:
		return LeaveNotice{}
	case SignalLivenessPing:
		return LivenessPing{}
	case SignalLivenessPong:
		return LivenessPong{}
	case SignalClockRequest:
		return ClockRequest{}
	case SignalClockReply:
		return ClockReply{}
	case SignalClockBroadcast:
		return ClockBroadcast{}
	case SignalRankUpdate:
		return RankUpdate{}
	case SignalSlotAssign:
		return SlotAssign{}
	case SignalSlotTrigger:
		return SlotTrigger{}
	case SignalSampleNotify:
		return SampleNotify{}
	default:
		return SampleReport{}
	}
}
