package images

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// labeledPath is the non-destructive output path for a labeled image
func labeledPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_labeled" + ext
}

// labelImage draws the volunteer name onto a bottom band of the image.
// Without overwrite it writes a *_labeled sibling and leaves an existing
// sibling untouched, so repeated passes over the same directory are
// no-ops.
func labelImage(path, name string, overwrite bool) (string, error) {
	out := path
	if !overwrite {
		out = labeledPath(path)
		if _, err := os.Stat(out); err == nil {
			return out, nil
		}
	}

	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("opening image: %w", err)
	}

	if err := imaging.Save(drawLabel(src, name), out); err != nil {
		return "", fmt.Errorf("saving labeled image: %w", err)
	}
	return out, nil
}

// drawLabel overlays a dark band sized to a tenth of the image height
// with the name scaled to fit inside it
func drawLabel(src image.Image, name string) *image.NRGBA {
	width := src.Bounds().Dx()
	height := src.Bounds().Dy()

	bandHeight := height / 10
	if bandHeight < basicfont.Face7x13.Height+4 {
		bandHeight = basicfont.Face7x13.Height + 4
	}

	out := imaging.Clone(src)
	band := imaging.New(width, bandHeight, color.NRGBA{0, 0, 0, 180})
	out = imaging.Overlay(out, band, image.Pt(0, height-bandHeight), 1.0)

	if name == "" {
		return out
	}

	text := renderText(name)
	textHeight := bandHeight - 4
	textWidth := text.Bounds().Dx() * textHeight / text.Bounds().Dy()
	if textWidth > width-8 {
		textWidth = width - 8
	}
	scaled := imaging.Resize(text, textWidth, textHeight, imaging.Lanczos)
	return imaging.Overlay(out, scaled, image.Pt(4, height-bandHeight+2), 1.0)
}

// renderText rasterizes the name in white at the base font size; the
// caller scales it to the band
func renderText(s string) *image.NRGBA {
	face := basicfont.Face7x13
	width := font.MeasureString(face, s).Ceil()
	img := image.NewNRGBA(image.Rect(0, 0, width+2, face.Height+2))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.NRGBA{255, 255, 255, 255}),
		Face: face,
		Dot:  fixed.P(1, face.Ascent+1),
	}
	drawer.DrawString(s)
	return img
}
