package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
)

// DefaultOpacity is the opacity of the difference map painted over the
// reference image.
const DefaultOpacity = 0.8

const lineHeight = 20

// InfoLine is one "key: value" annotation drawn under an image.
type InfoLine struct {
	Key   string
	Value string
}

// Labeled pairs an image with the configuration name it was captured on.
type Labeled struct {
	Name  string
	Image image.Image
}

// Overlay paints diff over a copy of base at the given opacity and writes
// label in a strip underneath.
func Overlay(base image.Image, diff *image.Gray, opacity float64, label string) image.Image {
	b := base.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(canvas, canvas.Bounds(), base, b.Min, xdraw.Src)

	alpha := uint8(math.Round(clamp(opacity, 0, 1) * 255))
	mask := image.NewUniform(color.Alpha{A: alpha})
	xdraw.DrawMask(canvas, canvas.Bounds(), diff, diff.Bounds().Min, mask, image.Point{}, xdraw.Over)

	if label == "" {
		return canvas
	}
	return withLabel(canvas, label)
}

// DiffImage renders the spatial difference of a and b over a.
func DiffImage(a, b image.Image, opacity float64, label string) (image.Image, error) {
	diff, err := PixelDiff(a, b)
	if err != nil {
		return nil, err
	}
	return Overlay(a, diff, opacity, label), nil
}

// SideBySide places a and b next to each other on a black canvas.
func SideBySide(a, b image.Image) image.Image {
	ab, bb := a.Bounds(), b.Bounds()
	w := ab.Dx() + bb.Dx()
	h := max(ab.Dy(), bb.Dy())

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, xdraw.Src)
	xdraw.Draw(canvas, image.Rect(0, 0, ab.Dx(), ab.Dy()), a, ab.Min, xdraw.Src)
	xdraw.Draw(canvas, image.Rect(ab.Dx(), 0, w, bb.Dy()), b, bb.Min, xdraw.Src)
	return canvas
}

// Crop returns the part of img inside rect. Rect is clipped to the image
// bounds; an empty intersection is an error.
func Crop(img image.Image, rect image.Rectangle) (image.Image, error) {
	r := rect.Intersect(img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("crop %v is outside image bounds %v", rect, img.Bounds())
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.Draw(out, out.Bounds(), img, r.Min, xdraw.Src)
	return out, nil
}

// AddInfo extends img downwards and writes one "key: value" line per entry.
func AddInfo(img image.Image, info []InfoLine) image.Image {
	b := img.Bounds()
	extra := (len(info) + 2) * lineHeight
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()+extra))
	xdraw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, xdraw.Src)
	xdraw.Draw(canvas, image.Rect(0, 0, b.Dx(), b.Dy()), img, b.Min, xdraw.Src)

	dc := gg.NewContextForRGBA(canvas)
	dc.SetRGB(1, 1, 1)
	y := b.Dy()
	for _, line := range info {
		y += lineHeight
		dc.DrawString(fmt.Sprintf("%s: %s", line.Key, line.Value), lineHeight, float64(y))
	}
	return canvas
}

func withLabel(img image.Image, label string) *image.RGBA {
	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()+lineHeight))
	xdraw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, xdraw.Src)
	xdraw.Draw(canvas, image.Rect(0, 0, b.Dx(), b.Dy()), img, b.Min, xdraw.Src)

	dc := gg.NewContextForRGBA(canvas)
	dc.SetRGB(1, 1, 1)
	dc.DrawString(label, 4, float64(b.Dy()+lineHeight-6))
	return canvas
}

// PairLabel is the label of a diagnostic comparing config a with config b.
func PairLabel(a, b string) string {
	return a + " vs " + b
}

// Grid renders an N×N comparison of the given images. Cell (i, j) shows the
// difference of image j painted over image i; the diagonal shows image i
// unmodified. Pairs with different dimensions show image i marked as
// incomparable.
func Grid(cells []Labeled, opacity float64) (image.Image, error) {
	if len(cells) == 0 {
		return nil, errors.New("grid needs at least one image")
	}

	var cellW, cellH int
	for _, c := range cells {
		cellW = max(cellW, c.Image.Bounds().Dx())
		cellH = max(cellH, c.Image.Bounds().Dy()+lineHeight)
	}

	n := len(cells)
	canvas := image.NewRGBA(image.Rect(0, 0, n*cellW, n*cellH))
	xdraw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, xdraw.Src)

	for i, ref := range cells {
		for j, other := range cells {
			var cell image.Image
			if i == j {
				cell = withLabel(ref.Image, ref.Name)
			} else {
				diff, err := PixelDiff(ref.Image, other.Image)
				if err != nil {
					cell = withLabel(ref.Image, PairLabel(ref.Name, other.Name)+" (size mismatch)")
				} else {
					cell = Overlay(ref.Image, diff, opacity, PairLabel(ref.Name, other.Name))
				}
			}
			cb := cell.Bounds()
			origin := image.Pt(j*cellW, i*cellH)
			xdraw.Draw(canvas, image.Rectangle{Min: origin, Max: origin.Add(cb.Size())}, cell, cb.Min, xdraw.Src)
		}
	}
	return canvas, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
