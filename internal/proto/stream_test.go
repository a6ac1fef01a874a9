package proto

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestStreamRoundTrip(t *testing.T) {
	w := NewStreamWriter()
	w.PutVec3(mgl32.Vec3{1.5, -2.25, 3})
	w.PutQuat(mgl32.Quat{W: 0.5, V: mgl32.Vec3{0.5, -0.5, 0.5}})
	w.PutFloat32(87.5)
	w.PutBool(true)

	if got, want := w.Len(), 3*4+4*4+4+1; got != want {
		t.Fatalf("encoded length = %d, want %d", got, want)
	}

	r := NewStreamReader(w.Bytes())
	if got := r.Vec3(); got != (mgl32.Vec3{1.5, -2.25, 3}) {
		t.Fatalf("Vec3 = %v", got)
	}
	if got := r.Quat(); got.W != 0.5 || got.V != (mgl32.Vec3{0.5, -0.5, 0.5}) {
		t.Fatalf("Quat = %v", got)
	}
	if got := r.Float32(); got != 87.5 {
		t.Fatalf("Float32 = %v", got)
	}
	if got := r.Bool(); !got {
		t.Fatalf("Bool = %v", got)
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}
	if got := r.Remaining(); got != 0 {
		t.Fatalf("Remaining = %d", got)
	}
}

func TestStreamReaderTruncation(t *testing.T) {
	w := NewStreamWriter()
	w.PutFloat32(1)
	frame := w.Bytes()[:3]

	r := NewStreamReader(frame)
	if got := r.Float32(); got != 0 {
		t.Fatalf("truncated Float32 = %v, want 0", got)
	}
	if !errors.Is(r.Err(), ErrStreamExhausted) {
		t.Fatalf("Err = %v, want ErrStreamExhausted", r.Err())
	}

	// The error is sticky; later reads keep returning zeros.
	if got := r.Bool(); got {
		t.Fatalf("Bool after exhaustion = %v, want false", got)
	}
	if !errors.Is(r.Err(), ErrStreamExhausted) {
		t.Fatalf("Err after second read = %v", r.Err())
	}
}

func TestStreamMisalignmentIsSilent(t *testing.T) {
	w := NewStreamWriter()
	w.PutBool(true)
	w.PutVec3(mgl32.Vec3{1, 2, 3})

	// Read the fields in the wrong order. Everything stays in bounds, so
	// the reader cannot flag it; the values are simply wrong.
	r := NewStreamReader(w.Bytes())
	got := r.Vec3()
	if r.Err() != nil {
		t.Fatalf("misaligned in-bounds read reported error: %v", r.Err())
	}
	if got == (mgl32.Vec3{1, 2, 3}) {
		t.Fatalf("misaligned read reproduced the original vector; expected garbage")
	}
}
