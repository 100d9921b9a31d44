package transferengine

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// writeHeader writes a length-prefixed file name onto w, the first thing
// sent on every SendFile stream.
func writeHeader(w io.Writer, name string) error {
	buf := make([]byte, 2+len(name))
	binary.BigEndian.PutUint16(buf, uint16(len(name)))
	copy(buf[2:], name)
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "transferengine: writing file header")
	}
	return nil
}

// readHeader reads back what writeHeader wrote.
func readHeader(r io.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", errors.Wrap(err, "transferengine: reading file header length")
	}
	nameLen := binary.BigEndian.Uint16(lenBuf[:])
	nameBuf := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBuf); err != nil {
		return "", errors.Wrap(err, "transferengine: reading file name")
	}
	return string(nameBuf), nil
}
