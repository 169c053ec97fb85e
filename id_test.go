package portprobe

import "testing"

func TestNewTaskIDUnique(t *testing.T) {
	a := NewTaskID()
	b := NewTaskID()
	if a == b {
		t.Fatal("expected two generated task IDs to differ")
	}
	if len(a) != 10 {
		t.Errorf("expected a 10-byte task ID, got length %d", len(a))
	}
}
