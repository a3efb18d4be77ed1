package logo

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	_ "golang.org/x/image/webp"
)

const (
	rerankTop       = 3
	rerankThreshold = 0.6
	maxURLScore     = 0.5
	maxVisualScore  = 0.3
)

// urlFeatureScore rates how much a URL looks like a logo asset
func urlFeatureScore(u string) float64 {
	if u == "" {
		return 0
	}
	lower := strings.ToLower(u)
	score := 0.0

	switch {
	case containsAny(lower, []string{".svg", ".png"}):
		score += 0.2
	case containsAny(lower, []string{".jpg", ".jpeg", ".webp"}):
		score += 0.1
	}

	if strings.Contains(lower, "logo") {
		score += 0.3
	}
	if containsAny(lower, []string{"brand", "company", "org"}) {
		score += 0.2
	}
	if containsAny(lower, []string{"/assets/", "/images/", "/img/", "/static/"}) {
		score += 0.1
	}

	if containsAny(lower, []string{"thumb", "small"}) {
		score -= 0.1
	}
	if containsAny(lower, []string{"large", "big"}) {
		score -= 0.05
	}

	return math.Min(score, maxURLScore)
}

// visualFeatureScore rates decoded image bytes: logo-like aspect ratio,
// logo-like pixel size and a small palette. Undecodable data scores 0.
func visualFeatureScore(data []byte) float64 {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	score := 0.0
	ratio := float64(w) / float64(h)
	if ratio >= 0.5 && ratio <= 4 {
		score += 0.2
	}

	switch {
	case w >= 50 && w <= 500 && h >= 30 && h <= 300:
		score += 0.2
	case w < 50 || h < 30:
		score -= 0.1
	}

	colors := countColors(img, 256)
	switch {
	case colors <= 10:
		score += 0.1
	case colors > 50 && colors <= 256:
		score -= 0.1
	}

	return math.Min(score, maxVisualScore)
}

// countColors counts distinct colors, stopping once limit is exceeded
func countColors(img image.Image, limit int) int {
	b := img.Bounds()
	seen := make(map[uint64]struct{}, limit)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			key := uint64(r>>8)<<24 | uint64(g>>8)<<16 | uint64(bl>>8)<<8 | uint64(a>>8)
			seen[key] = struct{}{}
			if len(seen) > limit {
				return len(seen)
			}
		}
	}
	return len(seen)
}
