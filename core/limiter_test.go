package core

import "testing"

func TestRoundLimiter(t *testing.T) {
	rl := NewRoundLimiter(2)
	if rl.Remaining() != 3 {
		t.Fatalf("expected 3 rounds, got %d", rl.Remaining())
	}
	for i := 0; i < 3; i++ {
		if i == 2 && !rl.IsFinal() {
			t.Fatal("expected third round to be final")
		}
		if err := rl.Increment(); err != nil {
			t.Fatalf("round %d: unexpected error %v", i, err)
		}
	}
	if err := rl.Increment(); err == nil {
		t.Fatal("expected limit error")
	}
	if rl.Count() != 4 {
		t.Fatalf("expected count 4, got %d", rl.Count())
	}
}

func TestRoundLimiter_NegativeMax(t *testing.T) {
	rl := NewRoundLimiter(-5)
	if !rl.IsFinal() {
		t.Fatal("a turn without tool uses has a single, final round")
	}
}
