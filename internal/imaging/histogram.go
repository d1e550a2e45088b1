package imaging

import (
	"image"
	"image/color"
	"math"
)

// InvalidScore marks a comparison that could not be computed.
var InvalidScore = math.NaN()

// IsInvalid reports whether score is the invalid sentinel.
func IsInvalid(score float64) bool {
	return math.IsNaN(score) || math.IsInf(score, 0) || score < 0
}

const bucketsPerChannel = 256

// Channels returns the number of channels the histogram of img has: 1 for
// grey images, 3 for YCbCr (JPEG) images and 4 for everything else.
func Channels(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.YCbCr:
		return 3
	default:
		return 4
	}
}

// Histogram counts channel values of img in 256 buckets per channel, the
// channels laid out one after another. With greyscale the image is reduced to
// luminance and alpha first.
func Histogram(img image.Image, greyscale bool) []int {
	channels := Channels(img)
	if greyscale {
		channels = 2
	}

	hist := make([]int, channels*bucketsPerChannel)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.At(x, y)
			switch {
			case greyscale:
				hist[color.GrayModel.Convert(c).(color.Gray).Y]++
				hist[bucketsPerChannel+int(color.NRGBAModel.Convert(c).(color.NRGBA).A)]++
			case channels == 1:
				hist[color.GrayModel.Convert(c).(color.Gray).Y]++
			default:
				n := color.NRGBAModel.Convert(c).(color.NRGBA)
				hist[n.R]++
				hist[bucketsPerChannel+int(n.G)]++
				hist[2*bucketsPerChannel+int(n.B)]++
				if channels == 4 {
					hist[3*bucketsPerChannel+int(n.A)]++
				}
			}
		}
	}
	return hist
}

// Compare returns the root-mean-square difference of the histograms of a and
// b, or InvalidScore when their channel layouts differ. The score depends only
// on colour distribution, not pixel position, and Compare(a, b) ==
// Compare(b, a).
func Compare(a, b image.Image, greyscale bool) float64 {
	return compareHistograms(Histogram(a, greyscale), Histogram(b, greyscale))
}

func compareHistograms(h1, h2 []int) float64 {
	if len(h1) != len(h2) || len(h1) == 0 {
		return InvalidScore
	}
	var sum float64
	for i := range h1 {
		d := float64(h1[i] - h2[i])
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(h1)))
}

// CompareFiles loads both files and compares them. Only decoding fails with
// an error; incomparable images yield InvalidScore.
func CompareFiles(pathA, pathB string, greyscale bool) (float64, error) {
	a, err := Load(pathA)
	if err != nil {
		return InvalidScore, err
	}
	b, err := Load(pathB)
	if err != nil {
		return InvalidScore, err
	}
	return Compare(a, b, greyscale), nil
}
