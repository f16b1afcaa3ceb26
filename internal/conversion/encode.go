package conversion

import (
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
)

// ArtifactExt is the extension of every generated slide.
const ArtifactExt = ".jpg"

const (
	DefaultMaxWidth  = 1024
	DefaultMaxHeight = 768
	DefaultQuality   = 75
)

// Encoder downscales an image into the bounding box, preserving aspect
// ratio and never upscaling, then writes a JPEG at a fixed quality.
type Encoder struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

func (e Encoder) withDefaults() Encoder {
	if e.MaxWidth <= 0 {
		e.MaxWidth = DefaultMaxWidth
	}
	if e.MaxHeight <= 0 {
		e.MaxHeight = DefaultMaxHeight
	}
	if e.Quality <= 0 || e.Quality > 100 {
		e.Quality = DefaultQuality
	}
	return e
}

func (e Encoder) Encode(fs afero.Fs, src, dst string) error {
	e = e.withDefaults()

	in, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	img, err := imaging.Decode(in, imaging.AutoOrientation(true))
	in.Close()
	if err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}

	fitted := imaging.Fit(img, e.MaxWidth, e.MaxHeight, imaging.Lanczos)

	out, err := fs.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if err := imaging.Encode(out, fitted, imaging.JPEG, imaging.JPEGQuality(e.Quality)); err != nil {
		out.Close()
		return fmt.Errorf("encode %s: %w", dst, err)
	}
	return out.Close()
}
