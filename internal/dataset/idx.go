package dataset

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// IDX magic numbers.
const (
	labelMagic = 0x00000801 // 2049
	imageMagic = 0x00000803 // 2051
)

// Limits on header fields. Counts are not trusted for allocation: storage
// grows only as data arrives.
const (
	maxImagePixels = 1 << 24
	preallocImages = 4096
)

// ErrFormat reports a malformed IDX stream.
var ErrFormat = errors.New("dataset: malformed idx file")

// ReadImages reads an IDX image stream.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes
//	number of cols: 4 bytes
//	pixel data: unsigned bytes (0-255), row-major
//
// It returns the raw pixels of every image together with the image size.
func ReadImages(r io.Reader) (images [][]byte, rows, cols int, err error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, errors.Wrap(err, "failed to read image header")
	}
	if header[0] != imageMagic {
		return nil, 0, 0, errors.Wrapf(ErrFormat, "invalid magic number: got %d, want %d", header[0], imageMagic)
	}
	count, rows, cols := int(header[1]), int(header[2]), int(header[3])
	if rows == 0 || cols == 0 {
		return nil, 0, 0, errors.Wrapf(ErrFormat, "empty image size %dx%d", rows, cols)
	}
	if uint64(header[2])*uint64(header[3]) > maxImagePixels {
		return nil, 0, 0, errors.Wrapf(ErrFormat, "image size %dx%d too large", rows, cols)
	}

	images = make([][]byte, 0, min(count, preallocImages))
	for i := range count {
		img := make([]byte, rows*cols)
		if _, err := io.ReadFull(r, img); err != nil {
			return nil, 0, 0, errors.Wrapf(ErrFormat, "image %d of %d: %v", i, count, err)
		}
		images = append(images, img)
	}
	return images, rows, cols, nil
}

// ReadLabels reads an IDX label stream.
//
// IDX file format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes
func ReadLabels(r io.Reader) ([]byte, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(err, "failed to read label header")
	}
	if header[0] != labelMagic {
		return nil, errors.Wrapf(ErrFormat, "invalid magic number: got %d, want %d", header[0], labelMagic)
	}

	var labels bytes.Buffer
	n, err := io.CopyN(&labels, r, int64(header[1]))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(ErrFormat, "got %d of %d labels", n, header[1])
		}
		return nil, errors.Wrap(err, "failed to read labels")
	}
	return labels.Bytes(), nil
}

// WriteImages writes images of rows x cols pixels as an IDX stream.
func WriteImages(w io.Writer, images [][]byte, rows, cols int) error {
	header := [4]uint32{imageMagic, uint32(len(images)), uint32(rows), uint32(cols)} //nolint:gosec // G115: sizes fit in uint32
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}
	for i, img := range images {
		if len(img) != rows*cols {
			return errors.Errorf("image %d has %d pixels, want %d", i, len(img), rows*cols)
		}
		if _, err := w.Write(img); err != nil {
			return err
		}
	}
	return nil
}

// WriteLabels writes labels as an IDX stream.
func WriteLabels(w io.Writer, labels []byte) error {
	header := [2]uint32{labelMagic, uint32(len(labels))} //nolint:gosec // G115: count fits in uint32
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}
	_, err := w.Write(labels)
	return err
}
