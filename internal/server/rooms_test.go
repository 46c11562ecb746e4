package server

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRoomMembershipJoinAndCurrent(t *testing.T) {
	m := NewRoomMembership()

	if _, ok := m.Current("c1"); ok {
		t.Error("Current reported a room for a connection that never joined")
	}

	m.Join("c1", "general")
	room, ok := m.Current("c1")
	if !ok || room != "general" {
		t.Errorf("Current(c1) = (%q, %v), want (general, true)", room, ok)
	}
}

func TestRoomMembershipSwitchOverwrites(t *testing.T) {
	m := NewRoomMembership()

	m.Join("c1", "general")
	m.Join("c1", "random")

	room, _ := m.Current("c1")
	if room != "random" {
		t.Errorf("Current(c1) = %q, want random", room)
	}
	if members := m.Members("general"); len(members) != 0 {
		t.Errorf("Members(general) = %v, want empty after switch", members)
	}
}

func TestRoomMembershipMembers(t *testing.T) {
	m := NewRoomMembership()

	m.Join("c1", "general")
	m.Join("c2", "general")
	m.Join("c3", "random")

	got := m.Members("general")
	sort.Strings(got)
	if diff := cmp.Diff([]string{"c1", "c2"}, got); diff != "" {
		t.Errorf("Members(general) mismatch (-want +got):\n%s", diff)
	}

	if members := m.Members("empty"); len(members) != 0 {
		t.Errorf("Members(empty) = %v, want none", members)
	}
}

func TestRoomMembershipForget(t *testing.T) {
	m := NewRoomMembership()

	m.Join("c1", "general")
	m.Forget("c1")
	m.Forget("c1") // idempotent

	if _, ok := m.Current("c1"); ok {
		t.Error("Current reported a room after Forget")
	}
}
