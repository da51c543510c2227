// Package dataset loads labelled image sets stored in the IDX format used by
// MNIST.
package dataset

import (
	"bufio"
	"math/rand/v2"
	"os"

	"github.com/pkg/errors"
)

// ImageSet is an in-memory labelled image set. Pixels are stored
// normalized to [0, 1].
type ImageSet struct {
	width  int
	height int
	images [][]float32
	labels []int
}

// New builds an ImageSet from raw pixels and labels.
func New(raw [][]byte, labels []byte, width, height int) (*ImageSet, error) {
	if len(raw) != len(labels) {
		return nil, errors.Errorf("dataset: %d images but %d labels", len(raw), len(labels))
	}
	s := &ImageSet{
		width:  width,
		height: height,
		images: make([][]float32, len(raw)),
		labels: make([]int, len(labels)),
	}
	for i, img := range raw {
		if len(img) != width*height {
			return nil, errors.Errorf("dataset: image %d has %d pixels, want %d", i, len(img), width*height)
		}
		px := make([]float32, len(img))
		for j, b := range img {
			px[j] = float32(b) / 255
		}
		s.images[i] = px
		s.labels[i] = int(labels[i])
	}
	return s, nil
}

// Load reads a label file and an image file and pairs them.
func Load(labelsPath, imagesPath string) (*ImageSet, error) {
	lf, err := os.Open(labelsPath)
	if err != nil {
		return nil, err
	}
	defer lf.Close()
	labels, err := ReadLabels(bufio.NewReader(lf))
	if err != nil {
		return nil, errors.Wrap(err, labelsPath)
	}

	imf, err := os.Open(imagesPath)
	if err != nil {
		return nil, err
	}
	defer imf.Close()
	raw, rows, cols, err := ReadImages(bufio.NewReader(imf))
	if err != nil {
		return nil, errors.Wrap(err, imagesPath)
	}
	return New(raw, labels, cols, rows)
}

// Count returns the number of images.
func (s *ImageSet) Count() int { return len(s.images) }

// ImageWidth returns the number of pixel columns.
func (s *ImageSet) ImageWidth() int { return s.width }

// ImageHeight returns the number of pixel rows.
func (s *ImageSet) ImageHeight() int { return s.height }

// Image returns the normalized pixels of image i. The slice is shared.
func (s *ImageSet) Image(i int) []float32 { return s.images[i] }

// Label returns the class of image i.
func (s *ImageSet) Label(i int) int { return s.labels[i] }

// Shuffle permutes images and labels together.
func (s *ImageSet) Shuffle(r *rand.Rand) {
	r.Shuffle(len(s.images), func(i, j int) {
		s.images[i], s.images[j] = s.images[j], s.images[i]
		s.labels[i], s.labels[j] = s.labels[j], s.labels[i]
	})
}

// OneHot writes the target vector for label into dst.
func OneHot(dst []float32, label int) {
	for i := range dst {
		dst[i] = 0
	}
	if label >= 0 && label < len(dst) {
		dst[label] = 1
	}
}
