package store

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
)

// On-disk layout: a fixed little-endian header followed by `capacity` planes
// of height*width float32 samples. Close rewrites the header with the final
// length and truncates the data region to exactly `length` planes.
const (
	magic      = "FSRC"
	version    = 1
	headerSize = 40
)

type header struct {
	height    uint32
	width     uint32
	chunkSize uint32
	capacity  uint64
	length    uint64
}

func (h *header) planeBytes() int64 {
	return int64(h.height) * int64(h.width) * 4
}

func (h *header) frameOffset(i int64) int64 {
	return headerSize + i*h.planeBytes()
}

func (h *header) marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], version)
	binary.LittleEndian.PutUint32(buf[8:12], h.height)
	binary.LittleEndian.PutUint32(buf[12:16], h.width)
	binary.LittleEndian.PutUint32(buf[16:20], h.chunkSize)
	binary.LittleEndian.PutUint64(buf[24:32], h.capacity)
	binary.LittleEndian.PutUint64(buf[32:40], h.length)
	return buf
}

func (h *header) unmarshal(buf []byte) error {
	if len(buf) < headerSize {
		return errors.New("short header")
	}
	if string(buf[0:4]) != magic {
		return errors.New("not a recording file")
	}
	if v := binary.LittleEndian.Uint32(buf[4:8]); v != version {
		return errors.Errorf("unsupported recording version %d", v)
	}
	h.height = binary.LittleEndian.Uint32(buf[8:12])
	h.width = binary.LittleEndian.Uint32(buf[12:16])
	h.chunkSize = binary.LittleEndian.Uint32(buf[16:20])
	h.capacity = binary.LittleEndian.Uint64(buf[24:32])
	h.length = binary.LittleEndian.Uint64(buf[32:40])
	if h.height == 0 || h.width == 0 {
		return errors.New("zero frame dimensions in header")
	}
	return nil
}

func writeHeader(f *os.File, h *header) error {
	_, err := f.WriteAt(h.marshal(), 0)
	return err
}

func readHeader(f *os.File) (*header, error) {
	buf := make([]byte, headerSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	h := &header{}
	if err := h.unmarshal(buf); err != nil {
		return nil, err
	}
	return h, nil
}
