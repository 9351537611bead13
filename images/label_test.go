package images

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func writeTestImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{200, 200, 200, 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("writing test image: %v", err)
	}
}

func TestDrawLabel_PreservesDimensions(t *testing.T) {
	src := imaging.New(200, 100, color.NRGBA{255, 255, 255, 255})
	out := drawLabel(src, "Jane Doe")

	if out.Bounds().Dx() != 200 || out.Bounds().Dy() != 100 {
		t.Errorf("labeled image is %dx%d, want 200x100", out.Bounds().Dx(), out.Bounds().Dy())
	}

	// the band darkens the bottom edge
	r, g, b, _ := out.At(100, 99).RGBA()
	if r>>8 > 128 || g>>8 > 128 || b>>8 > 128 {
		t.Errorf("bottom band pixel not darkened: %v", out.At(100, 99))
	}

	// the area above the band is untouched
	r, _, _, _ = out.At(100, 10).RGBA()
	if r>>8 != 255 {
		t.Errorf("pixel above band changed: %v", out.At(100, 10))
	}
}

func TestDrawLabel_TinyImage(t *testing.T) {
	src := imaging.New(40, 20, color.NRGBA{255, 255, 255, 255})
	out := drawLabel(src, "Jane Doe")
	if out.Bounds().Dx() != 40 || out.Bounds().Dy() != 20 {
		t.Errorf("labeled image is %dx%d, want 40x20", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestLabelImage_WritesSibling(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "jane_doe_pic.png")
	writeTestImage(t, src, 120, 120)

	out, err := labelImage(src, "Jane Doe", false)
	if err != nil {
		t.Fatalf("labelImage: %v", err)
	}
	if out != filepath.Join(dir, "jane_doe_pic_labeled.png") {
		t.Errorf("labeled path = %q", out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("labeled sibling missing: %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source file gone: %v", err)
	}
}

func TestLabelImage_ExistingSiblingLeftAlone(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "jane_doe_pic.png")
	writeTestImage(t, src, 120, 120)

	sibling := filepath.Join(dir, "jane_doe_pic_labeled.png")
	if err := os.WriteFile(sibling, []byte("sentinel"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := labelImage(src, "Jane Doe", false)
	if err != nil {
		t.Fatalf("labelImage: %v", err)
	}
	if out != sibling {
		t.Errorf("labelImage returned %q, want existing sibling", out)
	}

	data, err := os.ReadFile(sibling)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "sentinel" {
		t.Error("existing labeled sibling was rewritten")
	}
}

func TestLabelImage_Overwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "jane_doe_pic.png")
	writeTestImage(t, src, 120, 120)

	out, err := labelImage(src, "Jane Doe", true)
	if err != nil {
		t.Fatalf("labelImage: %v", err)
	}
	if out != src {
		t.Errorf("overwrite wrote to %q, want original path", out)
	}

	img, err := imaging.Open(src)
	if err != nil {
		t.Fatalf("reopening labeled image: %v", err)
	}
	if !img.Bounds().Eq(image.Rect(0, 0, 120, 120)) {
		t.Errorf("labeled image bounds = %v", img.Bounds())
	}
}
