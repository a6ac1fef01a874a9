package proto

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// StreamWriter builds the positional payload for one snapshot frame. Fields
// are encoded back to back with no tags or delimiters: the reader on the far
// side must consume the identical sequence of fields in the identical order,
// or every subsequent field decodes as garbage. That fragility is deliberate;
// the channel layer keeps it safe by allowing exactly one writer and one
// reader per channel.
type StreamWriter struct {
	buf []byte
}

// NewStreamWriter returns a writer with a small preallocated buffer sized for
// a single transform+health tuple.
func NewStreamWriter() *StreamWriter {
	return &StreamWriter{buf: make([]byte, 0, 64)}
}

// Bytes returns the encoded frame.
func (w *StreamWriter) Bytes() []byte {
	return w.buf
}

// Len reports the number of encoded bytes.
func (w *StreamWriter) Len() int {
	return len(w.buf)
}

// PutFloat32 appends one float32 in little-endian order.
func (w *StreamWriter) PutFloat32(v float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
}

// PutBool appends one boolean as a single byte.
func (w *StreamWriter) PutBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// PutVec3 appends the three components of a vector in x, y, z order.
func (w *StreamWriter) PutVec3(v mgl32.Vec3) {
	w.PutFloat32(v[0])
	w.PutFloat32(v[1])
	w.PutFloat32(v[2])
}

// PutQuat appends a quaternion as w, x, y, z.
func (w *StreamWriter) PutQuat(q mgl32.Quat) {
	w.PutFloat32(q.W)
	w.PutFloat32(q.V[0])
	w.PutFloat32(q.V[1])
	w.PutFloat32(q.V[2])
}

// StreamReader consumes a snapshot frame field by field. Reads past the end
// of the frame return zero values and latch a sticky error; misaligned reads
// that stay inside the frame are undetectable by design, which is why channel
// exclusivity matters.
type StreamReader struct {
	buf []byte
	off int
	err error
}

// NewStreamReader wraps an encoded frame for decoding.
func NewStreamReader(frame []byte) *StreamReader {
	return &StreamReader{buf: frame}
}

// Err reports whether any read ran past the end of the frame.
func (r *StreamReader) Err() error {
	return r.err
}

// Remaining reports the number of unread bytes.
func (r *StreamReader) Remaining() int {
	return len(r.buf) - r.off
}

// Float32 reads one little-endian float32.
func (r *StreamReader) Float32() float32 {
	if r.off+4 > len(r.buf) {
		r.err = ErrStreamExhausted
		return 0
	}
	bits := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return math.Float32frombits(bits)
}

// Bool reads one boolean byte.
func (r *StreamReader) Bool() bool {
	if r.off+1 > len(r.buf) {
		r.err = ErrStreamExhausted
		return false
	}
	v := r.buf[r.off] != 0
	r.off++
	return v
}

// Vec3 reads three float32 components in x, y, z order.
func (r *StreamReader) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{r.Float32(), r.Float32(), r.Float32()}
}

// Quat reads a quaternion encoded as w, x, y, z.
func (r *StreamReader) Quat() mgl32.Quat {
	w := r.Float32()
	return mgl32.Quat{W: w, V: mgl32.Vec3{r.Float32(), r.Float32(), r.Float32()}}
}
