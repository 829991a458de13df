package wire_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dantte-lp/gotun/internal/wire"
)

func TestReaderFixedReads(t *testing.T) {
	t.Parallel()

	r := wire.NewReader([]byte{
		0x01,             // uint8
		0x02, 0x03,       // uint16
		0x04, 0x05, 0x06, // uint24
		0x07, 0x08, 0x09, 0x0A, // uint32
		0xDE, 0xAD, 0xBE, 0xEF, // array4
	})

	v8, err := r.Uint8()
	if err != nil || v8 != 0x01 {
		t.Fatalf("Uint8() = %#x, %v, want 0x01", v8, err)
	}

	v16, err := r.Uint16()
	if err != nil || v16 != 0x0203 {
		t.Fatalf("Uint16() = %#x, %v, want 0x0203", v16, err)
	}

	v24, err := r.Uint24()
	if err != nil || v24 != 0x040506 {
		t.Fatalf("Uint24() = %#x, %v, want 0x040506", v24, err)
	}

	v32, err := r.Uint32()
	if err != nil || v32 != 0x0708090A {
		t.Fatalf("Uint32() = %#x, %v, want 0x0708090A", v32, err)
	}

	a4, err := r.Array4()
	if err != nil || a4 != [4]byte{0xDE, 0xAD, 0xBE, 0xEF} {
		t.Fatalf("Array4() = %v, %v", a4, err)
	}

	if r.Remaining() != 0 {
		t.Fatalf("Remaining() = %d after consuming all input", r.Remaining())
	}
}

func TestReaderShortReads(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		buf  []byte
		read func(r *wire.Reader) error
	}{
		{"uint8 empty", nil, func(r *wire.Reader) error { _, err := r.Uint8(); return err }},
		{"uint16 one byte", []byte{0x01}, func(r *wire.Reader) error { _, err := r.Uint16(); return err }},
		{"uint24 two bytes", []byte{0x01, 0x02}, func(r *wire.Reader) error { _, err := r.Uint24(); return err }},
		{"uint32 three bytes", []byte{0x01, 0x02, 0x03}, func(r *wire.Reader) error { _, err := r.Uint32(); return err }},
		{"array4 short", []byte{0x01, 0x02}, func(r *wire.Reader) error { _, err := r.Array4(); return err }},
		{"array16 short", make([]byte, 15), func(r *wire.Reader) error { _, err := r.Array16(); return err }},
		{"bytes beyond end", []byte{0x01}, func(r *wire.Reader) error { _, err := r.Bytes(2); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.read(wire.NewReader(tt.buf))
			if !errors.Is(err, wire.ErrShortRead) {
				t.Fatalf("err = %v, want ErrShortRead", err)
			}
		})
	}
}

func TestReaderBytesClamped(t *testing.T) {
	t.Parallel()

	r := wire.NewReader([]byte{0x01, 0x02, 0x03})

	// Asking for more than remains yields what remains, no error.
	got := r.BytesClamped(8)
	if !bytes.Equal(got, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("BytesClamped(8) = %v, want all three bytes", got)
	}

	// Exhausted reader clamps to nothing.
	if got := r.BytesClamped(4); len(got) != 0 {
		t.Fatalf("BytesClamped(4) on empty reader = %v, want empty", got)
	}
}

func TestReaderPeekDoesNotAdvance(t *testing.T) {
	t.Parallel()

	r := wire.NewReader([]byte{0x45, 0x00})

	p, err := r.PeekUint8()
	if err != nil || p != 0x45 {
		t.Fatalf("PeekUint8() = %#x, %v, want 0x45", p, err)
	}
	if r.Remaining() != 2 {
		t.Fatalf("Remaining() = %d after peek, want 2", r.Remaining())
	}

	v, err := r.Uint8()
	if err != nil || v != 0x45 {
		t.Fatalf("Uint8() after peek = %#x, %v, want 0x45", v, err)
	}
}

func TestReaderRest(t *testing.T) {
	t.Parallel()

	r := wire.NewReader([]byte{0x01, 0x02, 0x03, 0x04})
	if _, err := r.Uint16(); err != nil {
		t.Fatalf("Uint16() error: %v", err)
	}

	rest := r.Rest()
	if !bytes.Equal(rest, []byte{0x03, 0x04}) {
		t.Fatalf("Rest() = %v, want [03 04]", rest)
	}
	if r.Remaining() != 0 {
		t.Fatalf("Remaining() = %d after Rest()", r.Remaining())
	}
}

func TestWriterRoundTrip(t *testing.T) {
	t.Parallel()

	w := wire.NewWriter(16)
	w.PutUint8(0x45)
	w.PutUint16(0xDEAD)
	w.PutUint32(0xCAFEBABE)
	w.PutBytes([]byte{0x01, 0x02})

	r := wire.NewReader(w.Bytes())

	if v, _ := r.Uint8(); v != 0x45 {
		t.Fatalf("round-trip uint8 = %#x", v)
	}
	if v, _ := r.Uint16(); v != 0xDEAD {
		t.Fatalf("round-trip uint16 = %#x", v)
	}
	if v, _ := r.Uint32(); v != 0xCAFEBABE {
		t.Fatalf("round-trip uint32 = %#x", v)
	}
	if rest := r.Rest(); !bytes.Equal(rest, []byte{0x01, 0x02}) {
		t.Fatalf("round-trip bytes = %v", rest)
	}
	if w.Len() != 9 {
		t.Fatalf("Len() = %d, want 9", w.Len())
	}
}
