package feature

import (
	"strings"
	"testing"
)

type widgetHalf struct {
	name string
}

type gadgetHalf struct {
	name string
}

func TestTransfer(t *testing.T) {
	original := &widgetHalf{name: "thermostat"}
	var erased any = original

	got, ok := Transfer[*widgetHalf](erased)
	if !ok {
		t.Fatal("expected transfer to matching type to succeed")
	}
	if got != original {
		t.Error("expected transfer to return the same underlying value")
	}
}

func TestTransferMismatch(t *testing.T) {
	original := &widgetHalf{name: "thermostat"}
	var erased any = original

	if _, ok := Transfer[*gadgetHalf](erased); ok {
		t.Fatal("expected transfer to mismatched type to fail")
	}

	// The original must remain intact and usable after a failed transfer.
	got, ok := Transfer[*widgetHalf](erased)
	if !ok {
		t.Fatal("expected retry with the correct type to succeed")
	}
	if got.name != "thermostat" {
		t.Errorf("expected original value untouched, got name %q", got.name)
	}
}

func TestTransferNil(t *testing.T) {
	if _, ok := Transfer[*widgetHalf](nil); ok {
		t.Error("expected transfer of nil to fail")
	}
}

func TestMustTransferPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected MustTransfer to panic on mismatch")
		}
		msg, ok := r.(string)
		if !ok || !strings.Contains(msg, "transfer mismatch") {
			t.Errorf("unexpected panic value: %v", r)
		}
	}()
	MustTransfer[*gadgetHalf](&widgetHalf{})
}
