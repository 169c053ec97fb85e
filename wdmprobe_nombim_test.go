//go:build !mbim

package portprobe

import (
	"context"
	"testing"
)

func TestNoMBIMHandleSynchronousNegative(t *testing.T) {
	h := newMBIMHandle("cdc-wdm0")
	if err := h.Open(context.Background()); err == nil {
		t.Fatal("expected noMBIMHandle.Open to fail when MBIM support isn't compiled in")
	}
	if h.IsOpen() {
		t.Error("expected noMBIMHandle to never report open")
	}
}
