package node

import (
	"testing"

	"github.com/meshtree/internal/wire"
	"github.com/meshtree/pkg/models"
)

func TestSample_RelayedUnchanged(t *testing.T) {
	c := newHarness(t, 2, models.RoleCoordinator, nil)
	c.joinUnder(addr(1), 0, -50)

	rep := wire.SampleReport{SourceID: 9, Value: -42, Clock: 1234}
	c.node.Handle(rep, addr(5), 0)

	msgs := c.tx.to(addr(1))
	if len(msgs) != 1 || msgs[0] != rep {
		t.Errorf("expected unchanged relay, got %+v", msgs)
	}

	c.tx.reset()
	c.node.Handle(wire.SampleReport{SourceID: 2, Value: 1}, addr(5), 0)
	if len(c.tx.sent) != 0 {
		t.Error("sample carrying our own source id must be dropped")
	}
}

func TestSample_DeliveredAtRoot(t *testing.T) {
	root := newHarness(t, 1, models.RoleBorderRouter, nil)
	root.node.Handle(wire.SampleReport{SourceID: 9, Value: 2200, Clock: 50}, addr(2), 0)
	root.node.Handle(wire.SampleNotify{SourceID: 3, Value: 7}, addr(3), 0)

	if len(root.sink.samples) != 2 {
		t.Fatalf("expected 2 delivered samples, got %d", len(root.sink.samples))
	}
	got := root.sink.samples[0]
	if got.Kind != models.SampleReport || got.SourceID != 9 || got.Value != 2200 || got.From != addr(2) || got.Clock != 50 {
		t.Errorf("unexpected sample %+v", got)
	}
	if root.sink.samples[1].Kind != models.SampleNotify {
		t.Errorf("second sample kind = %s, want notify", root.sink.samples[1].Kind)
	}
	if len(root.tx.sent) != 0 {
		t.Error("root must not forward samples")
	}
}

func TestNotify(t *testing.T) {
	s := newHarness(t, 5, models.RoleSensor, nil)
	s.node.Notify(10)
	if len(s.tx.sent) != 0 {
		t.Fatal("detached node must not notify")
	}

	s.joinUnder(addr(2), 1, -50)
	s.node.Notify(11)
	msgs := s.tx.to(addr(2))
	if len(msgs) != 1 {
		t.Fatalf("expected notify to parent, got %+v", msgs)
	}
	if n := msgs[0].(wire.SampleNotify); n.SourceID != 5 || n.Value != 11 {
		t.Errorf("unexpected notify %+v", n)
	}

	root := newHarness(t, 1, models.RoleBorderRouter, nil)
	root.node.Notify(12)
	if len(root.sink.samples) != 1 || root.sink.samples[0].SourceID != 1 {
		t.Errorf("root notify should deliver locally, got %+v", root.sink.samples)
	}
}
