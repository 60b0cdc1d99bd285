package capture

import (
	"testing"
	"time"
)

// TestFrameLayout pins the on-disk header size and field order.
func TestFrameLayout(t *testing.T) {
	f := NewFrame(time.Unix(0, 0x0102030405060708), []byte("abc"))

	if f.Size != 3 {
		t.Errorf("Expected Size 3, got %d", f.Size)
	}
	if f.EncodedSize() != 16+3 {
		t.Errorf("Expected encoded size 19, got %d", f.EncodedSize())
	}

	data, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if data[4] != 3 || data[5] != 0 {
		t.Errorf("Expected little-endian size at offset 4, got % x", data[4:8])
	}
	if data[8] != 0x08 || data[15] != 0x01 {
		t.Errorf("Expected little-endian timestamp at offset 8, got % x", data[8:16])
	}
	if string(data[16:]) != "abc" {
		t.Errorf("Expected payload after header, got %q", data[16:])
	}
}
