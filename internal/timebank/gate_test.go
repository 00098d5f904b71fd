package timebank

import "testing"

func TestGateMonotonic(t *testing.T) {
	var g Gate
	if g.Both() {
		t.Fatal("empty gate reports both")
	}
	if !g.Set(RoleProvider) {
		t.Fatal("first set must report a change")
	}
	if g.Set(RoleProvider) {
		t.Fatal("repeat set must be a no-op")
	}
	if g.Both() {
		t.Fatal("one flag must not satisfy the gate")
	}
	if !g.Set(RoleConsumer) {
		t.Fatal("second role set must report a change")
	}
	if !g.Both() {
		t.Fatal("both flags set, gate must fire")
	}
	g.Reset()
	if g.Has(RoleProvider) || g.Has(RoleConsumer) {
		t.Fatal("reset must clear both flags")
	}
}
