package userdir

import "testing"

func TestUnknownPeerIsNotOK(t *testing.T) {
	d := New("default")
	if _, ok := d.GroupOf("ghost"); ok {
		t.Fatalf("expected unknown peer to report ok=false")
	}
}

func TestJoinedPeerResolvesToDefaultGroup(t *testing.T) {
	d := New("default")
	d.Join("alice", RoleSender)
	group, ok := d.GroupOf("alice")
	if !ok || group != "default" {
		t.Fatalf("expected alice to resolve to default group, got %q ok=%v", group, ok)
	}
}

func TestSetGroupOverridesDefault(t *testing.T) {
	d := New("default")
	d.Join("alice", RoleSender)
	d.SetGroup("alice", "privileged")
	group, ok := d.GroupOf("alice")
	if !ok || group != "privileged" {
		t.Fatalf("expected alice to resolve to privileged, got %q ok=%v", group, ok)
	}
}

func TestLeaveForgetsPeer(t *testing.T) {
	d := New("default")
	d.Join("alice", RoleSender)
	d.Leave("alice")
	if _, ok := d.GroupOf("alice"); ok {
		t.Fatalf("expected leave to forget the peer")
	}
}

func TestRoleOfDefaultsToSender(t *testing.T) {
	d := New("default")
	if r := d.RoleOf("ghost"); r != RoleSender {
		t.Fatalf("expected default role sender, got %q", r)
	}
	d.Join("bob", RoleReceiver)
	if r := d.RoleOf("bob"); r != RoleReceiver {
		t.Fatalf("expected bob's role receiver, got %q", r)
	}
}
