package firmware

import (
	"errors"
	"testing"
)

func TestI9100Layout(t *testing.T) {
	// The layout must match the stock I9100 radio image byte for byte.
	testCases := []struct {
		component  Component
		wantOffset int64
		wantLength int64
	}{
		{PSI, 0x0, 0xF000},
		{EBL, 0xF000, 0x19000},
		{SecureImage, 0x9FF800, 0x800},
		{Firmware, 0x28000, 0x9D8000},
		{NVData, 0x6406E00, 0x200000},
	}

	for _, tc := range testCases {
		p, ok := i9100Parts[tc.component]
		if !ok {
			t.Fatalf("Component %v: missing from layout table", tc.component)
		}
		if p.offset != tc.wantOffset || p.length != tc.wantLength {
			t.Errorf("Component %v: got (0x%X, 0x%X), want (0x%X, 0x%X)",
				tc.component, p.offset, p.length, tc.wantOffset, tc.wantLength)
		}
	}
}

func TestPart(t *testing.T) {
	// A buffer that covers exactly PSI and nothing more.
	img := NewFromBytes(make([]byte, 0xF000))

	psi, err := img.Part(PSI)
	if err != nil {
		t.Fatalf("Part(PSI): %v", err)
	}
	if len(psi) != 0xF000 {
		t.Fatalf("Part(PSI): got %d bytes, want %d", len(psi), 0xF000)
	}

	_, err = img.Part(EBL)
	if err == nil {
		t.Fatalf("Part(EBL): expected out-of-bounds error for short buffer")
	}
	var layoutErr *LayoutError
	if !errors.As(err, &layoutErr) {
		t.Fatalf("Part(EBL): got %T (%v), want *LayoutError", err, err)
	}
	if layoutErr.Component != EBL {
		t.Errorf("LayoutError component: got %v, want %v", layoutErr.Component, EBL)
	}
}

func TestPartAliasesBuffer(t *testing.T) {
	buf := make([]byte, 0xF000)
	buf[0x100] = 0xDE
	img := NewFromBytes(buf)

	psi, err := img.Part(PSI)
	if err != nil {
		t.Fatalf("Part(PSI): %v", err)
	}
	if psi[0x100] != 0xDE {
		t.Fatalf("Part(PSI) does not alias the image buffer")
	}
}

func TestCloseIdempotent(t *testing.T) {
	img := NewFromBytes(make([]byte, 16))
	if err := img.Close(); err != nil {
		t.Fatalf("first Close(): %v", err)
	}
	if err := img.Close(); err != nil {
		t.Fatalf("second Close(): %v", err)
	}
	if _, err := img.Part(PSI); err == nil {
		t.Fatalf("Part() after Close(): expected error")
	}
}
