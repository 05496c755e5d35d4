package engine

import "image"

// finderPatterns looks for the concentric dark/light squares QR codes carry
// in three corners. It is a heuristic: it trades recall for speed.
type finderPatterns struct {
	minSize int
}

func newFinderPatterns() *finderPatterns {
	return &finderPatterns{minSize: 7}
}

// present reports whether gray shows at least two finder patterns
func (fp *finderPatterns) present(gray *image.Gray) bool {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	maxSize := min(width, height) / 3
	if maxSize < fp.minSize {
		return false
	}

	probes := []image.Point{
		{width / 4, height / 4},
		{3 * width / 4, height / 4},
		{width / 4, 3 * height / 4},
		{width / 2, height / 2},
	}
	found := 0
	for _, p := range probes {
		if fp.patternNear(gray, p.Add(b.Min), maxSize) {
			found++
		}
	}
	return found >= 2
}

func (fp *finderPatterns) patternNear(gray *image.Gray, center image.Point, maxSize int) bool {
	for size := fp.minSize; size <= maxSize; size += 2 {
		if fp.matches(gray, center, size/2) {
			return true
		}
	}
	return false
}

// matches samples outward from center along four directions expecting
// dark, light, dark, light bands
func (fp *finderPatterns) matches(gray *image.Gray, center image.Point, radius int) bool {
	b := gray.Bounds()
	if !image.Rect(center.X-radius, center.Y-radius, center.X+radius+1, center.Y+radius+1).In(b) {
		return false
	}

	samples := []int{radius / 4, radius / 2, 3 * radius / 4, radius}
	expectDark := []bool{true, false, true, false}
	directions := []image.Point{{1, 0}, {0, 1}, {1, 1}, {-1, 1}}

	matching := 0
	for _, dir := range directions {
		hits := 0
		for i, s := range samples {
			p := center.Add(dir.Mul(s))
			if (gray.GrayAt(p.X, p.Y).Y < 128) == expectDark[i] {
				hits++
			}
		}
		if hits >= len(samples)-1 {
			matching++
		}
	}
	return matching >= 2
}
