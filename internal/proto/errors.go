package proto

import "errors"

// ErrStreamExhausted is latched by a StreamReader when a read runs past the
// end of the frame. It is the only decode failure the stream layer can
// detect; in-bounds misalignment produces wrong values silently.
var ErrStreamExhausted = errors.New("proto: snapshot stream exhausted")
