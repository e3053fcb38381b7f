package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestSliceToBytes(t *testing.T) {
	indices := []uint32{1, 2}
	got := SliceToBytes(indices)
	if len(got) != 8 || got[0] != 1 || got[4] != 2 {
		t.Fatalf("unexpected bytes %v", got)
	}
	if SliceToBytes([]uint32{}) != nil {
		t.Fatal("expected nil for an empty slice")
	}
}

func TestValueToBytes(t *testing.T) {
	value := float32(1)
	if got := ValueToBytes(&value); len(got) != 4 || got[3] != 0x3f {
		t.Fatalf("unexpected bytes %v", got)
	}
	m := mgl32.Ident4()
	if got := ValueToBytes(&m); len(got) != 64 {
		t.Fatalf("a mat4 is 64 bytes, got %d", len(got))
	}
}
