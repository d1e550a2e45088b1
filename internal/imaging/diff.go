package imaging

import (
	"image"
	"image/color"
	"math"
)

// Epsilon is the smallest distance spread that is normalized. Below it the
// two images are treated as visually identical.
const Epsilon = 1e-9

// PixelDiff returns a map of the per-pixel Euclidean distance between the
// RGBA vectors of a and b, normalized into [0, 255] over the observed
// min..max range. Both images must share dimensions.
func PixelDiff(a, b image.Image) (*image.Gray, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Size() != bb.Size() {
		return nil, &DimensionMismatchError{A: ab.Size(), B: bb.Size()}
	}

	w, h := ab.Dx(), ab.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out, nil
	}

	dist := make([]float64, w*h)
	minD, maxD := math.Inf(1), math.Inf(-1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ca := color.NRGBAModel.Convert(a.At(ab.Min.X+x, ab.Min.Y+y)).(color.NRGBA)
			cb := color.NRGBAModel.Convert(b.At(bb.Min.X+x, bb.Min.Y+y)).(color.NRGBA)
			d := distance(ca, cb)
			dist[y*w+x] = d
			minD = math.Min(minD, d)
			maxD = math.Max(maxD, d)
		}
	}

	spread := maxD - minD
	if spread <= Epsilon {
		return out, nil
	}
	for y := 0; y < h; y++ {
		row := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := range row {
			row[x] = uint8(math.Round((dist[y*w+x] - minD) * 255 / spread))
		}
	}
	return out, nil
}

func distance(a, b color.NRGBA) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	da := float64(a.A) - float64(b.A)
	return math.Sqrt(dr*dr + dg*dg + db*db + da*da)
}
