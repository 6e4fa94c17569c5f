// Package wire defines the control-plane messages exchanged between nodes and
// their fixed-size binary frame.
package wire

import "github.com/meshtree/pkg/models"

// Message is one of the concrete message types below. Each type carries only
// the fields its signal needs.
type Message interface {
	Signal() Signal
}

// JoinRequest is broadcast by a node looking for a parent. Rank is the
// requester's current rank, if it has one.
type JoinRequest struct {
	Role models.Role
	Rank *int
}

// JoinOffer answers a JoinRequest with the offerer's rank.
type JoinOffer struct {
	Role models.Role
	Rank int
}

type JoinAck struct{}

type LeaveNotice struct{}

type LivenessPing struct{}

type LivenessPong struct{}

type ClockRequest struct{}

// ClockReply carries the replier's compensated clock.
type ClockReply struct {
	Clock int64
}

// ClockBroadcast carries the synchronized clock computed by the root.
type ClockBroadcast struct {
	Clock int64
}

type RankUpdate struct {
	Rank int
}

// SlotAssign hands a transmission window to a child. Clock is the sender's
// compensated clock at the time of sending and serves as timing reference.
type SlotAssign struct {
	Slot  models.Slot
	Clock int64
}

type SlotTrigger struct{}

type SampleNotify struct {
	SourceID uint16
	Value    int32
	Clock    int64
}

type SampleReport struct {
	SourceID uint16
	Value    int32
	Clock    int64
}

func (JoinRequest) Signal() Signal    { return SignalJoinRequest }
func (JoinOffer) Signal() Signal      { return SignalJoinOffer }
func (JoinAck) Signal() Signal        { return SignalJoinAck }
func (LeaveNotice) Signal() Signal    { return SignalLeaveNotice }
func (LivenessPing) Signal() Signal   { return SignalLivenessPing }
func (LivenessPong) Signal() Signal   { return SignalLivenessPong }
func (ClockRequest) Signal() Signal   { return SignalClockRequest }
func (ClockReply) Signal() Signal     { return SignalClockReply }
func (ClockBroadcast) Signal() Signal { return SignalClockBroadcast }
func (RankUpdate) Signal() Signal     { return SignalRankUpdate }
func (SlotAssign) Signal() Signal     { return SignalSlotAssign }
func (SlotTrigger) Signal() Signal    { return SignalSlotTrigger }
func (SampleNotify) Signal() Signal   { return SignalSampleNotify }
func (SampleReport) Signal() Signal   { return SignalSampleReport }
