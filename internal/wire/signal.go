package wire

import "fmt"

// Signal is the tag of a wire message.
type Signal uint8

const (
	SignalJoinRequest Signal = iota
	SignalJoinOffer
	SignalJoinAck
	SignalLeaveNotice
	SignalLivenessPing
	SignalLivenessPong
	SignalClockRequest
	SignalClockReply
	SignalClockBroadcast
	SignalRankUpdate
	SignalSlotAssign
	SignalSlotTrigger
	SignalSampleNotify
	SignalSampleReport

	numSignals
)

var signalNames = [numSignals]string{
	SignalJoinRequest:    "join_request",
	SignalJoinOffer:      "join_offer",
	SignalJoinAck:        "join_ack",
	SignalLeaveNotice:    "leave_notice",
	SignalLivenessPing:   "liveness_ping",
	SignalLivenessPong:   "liveness_pong",
	SignalClockRequest:   "clock_request",
	SignalClockReply:     "clock_reply",
	SignalClockBroadcast: "clock_broadcast",
	SignalRankUpdate:     "rank_update",
	SignalSlotAssign:     "slot_assign",
	SignalSlotTrigger:    "slot_trigger",
	SignalSampleNotify:   "sample_notify",
	SignalSampleReport:   "sample_report",
}

func (s Signal) Valid() bool {
	return s < numSignals
}

func (s Signal) String() string {
	if s.Valid() {
		return signalNames[s]
	}
	return fmt.Sprintf("signal(%d)", uint8(s))
}

// Signals lists the whole catalogue in tag order.
func Signals() []Signal {
	out := make([]Signal, 0, numSignals)
	for s := Signal(0); s < numSignals; s++ {
		out = append(out, s)
	}
	return out
}
