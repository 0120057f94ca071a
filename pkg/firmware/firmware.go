package firmware

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Component identifies one part of the combined radio firmware image.
type Component int

const (
	// PSI is the Primary Signed Image, the first-stage bootloader.
	PSI Component = iota
	// EBL is the Extended Bootloader, the second stage.
	EBL
	// SecureImage is the signature blob checked by the boot ROM.
	SecureImage
	// Firmware is the main modem firmware.
	Firmware
	// NVData is the calibration/NV data area.
	NVData
)

func (c Component) String() string {
	switch c {
	case PSI:
		return "PSI"
	case EBL:
		return "EBL"
	case SecureImage:
		return "SecureImage"
	case Firmware:
		return "Firmware"
	case NVData:
		return "NVData"
	}
	return fmt.Sprintf("Component(%d)", int(c))
}

// part describes where a component lives inside the radio image.
type part struct {
	offset int64
	length int64
}

// i9100Parts is the fixed layout of the I9100 radio image. These values are
// wire-compatible with the stock firmware and must not change.
var i9100Parts = map[Component]part{
	PSI:         {offset: 0x0, length: 0xF000},
	EBL:         {offset: 0xF000, length: 0x19000},
	SecureImage: {offset: 0x9FF800, length: 0x800},
	Firmware:    {offset: 0x28000, length: 0x9D8000},
	NVData:      {offset: 0x6406E00, length: 0x200000},
}

// RadioMapSize is how much of the radio block device gets mapped. The boot
// chain components (PSI, EBL, SecureImage, Firmware) all live in the first
// 16 MiB; NVData sits outside this window and is served from a separate
// file on real devices.
const RadioMapSize = 16 << 20

// LayoutError reports a component whose declared location does not fit the
// opened image buffer.
type LayoutError struct {
	Component Component
	Offset    int64
	Length    int64
	Size      int64
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("%s [0x%X, 0x%X) is out of image bounds (size 0x%X)",
		e.Component, e.Offset, e.Offset+e.Length, e.Size)
}

// Image is a read-only view of the combined radio firmware. It backs every
// component slice handed out by Part, so it has to stay open until the last
// slice has been transmitted.
type Image struct {
	data   []byte
	mapped bool
}

// Open maps the radio image (usually a raw block device) read-only.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open radio image %q: %w", path, err)
	}
	// The fd is only needed to establish the mapping.
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, RadioMapSize, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("cannot mmap radio image %q: %w", path, err)
	}
	return &Image{data: data, mapped: true}, nil
}

// NewFromBytes wraps an in-memory buffer in an Image. Used by tests and the
// emulator flow, where there is no block device to map.
func NewFromBytes(data []byte) *Image {
	return &Image{data: data}
}

// Part returns the byte range of a component. The slice aliases the image
// buffer; callers must not hold it past Close.
func (img *Image) Part(c Component) ([]byte, error) {
	p, ok := i9100Parts[c]
	if !ok {
		return nil, fmt.Errorf("unknown component %v", c)
	}
	if p.offset+p.length > int64(len(img.data)) {
		return nil, &LayoutError{Component: c, Offset: p.offset, Length: p.length, Size: int64(len(img.data))}
	}
	return img.data[p.offset : p.offset+p.length], nil
}

// Size returns the size of the opened image buffer.
func (img *Image) Size() int64 {
	return int64(len(img.data))
}

// Close releases the mapping. Safe to call more than once and on images
// that were never mapped.
func (img *Image) Close() error {
	if !img.mapped {
		img.data = nil
		return nil
	}
	data := img.data
	img.data = nil
	img.mapped = false
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("cannot unmap radio image: %w", err)
	}
	return nil
}
