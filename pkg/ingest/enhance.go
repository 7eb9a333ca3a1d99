package ingest

import (
	"image"
	"image/color"
)

// Enhancement parameters. The scanned-page profile mirrors a local-mean
// adaptive threshold with a small offset; the diagram profile uses CLAHE
// followed by a global Otsu cut, because schematics have flat contrast that
// a local threshold turns into noise.
const (
	defaultAdaptiveBlock = 11  // neighborhood size for adaptive threshold, odd
	adaptiveOffset       = 2   // subtracted from the local mean
	claheClipLimit       = 2.0 // histogram clip factor
	claheTileGrid        = 8   // tiles per axis
	morphRadius          = 1   // structuring element radius for close/open
)

// EnhanceForOCR prepares a scanned text page for character recognition:
// grayscale, adaptive threshold, then morphological close and open to drop
// speckle while keeping strokes connected.
func EnhanceForOCR(img image.Image, blockSize int) *image.Gray {
	if blockSize <= 1 {
		blockSize = defaultAdaptiveBlock
	}
	if blockSize%2 == 0 {
		blockSize++
	}
	gray := toGray(img)
	binary := adaptiveThreshold(gray, blockSize, adaptiveOffset)
	closed := erode(dilate(binary, morphRadius), morphRadius)
	opened := dilate(erode(closed, morphRadius), morphRadius)
	return opened
}

// EnhanceForDiagram prepares a schematic or diagram image: grayscale,
// contrast-limited adaptive histogram equalization, then global Otsu
// binarization.
func EnhanceForDiagram(img image.Image) *image.Gray {
	gray := toGray(img)
	equalized := clahe(gray, claheClipLimit, claheTileGrid)
	return otsuThreshold(equalized)
}

// toGray converts any image to 8-bit grayscale using the standard luma
// weights.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// adaptiveThreshold binarizes using the local mean over a blockSize square
// neighborhood: pixels brighter than mean-offset become white. Local means
// come from a summed-area table so the pass is O(w*h).
func adaptiveThreshold(g *image.Gray, blockSize, offset int) *image.Gray {
	bounds := g.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewGray(bounds)
	if w == 0 || h == 0 {
		return out
	}

	integral := integralImage(g)
	half := blockSize / 2

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := maxInt(x-half, 0), maxInt(y-half, 0)
			x1, y1 := minInt(x+half, w-1), minInt(y+half, h-1)
			area := (x1 - x0 + 1) * (y1 - y0 + 1)
			sum := integral[y1+1][x1+1] - integral[y0][x1+1] - integral[y1+1][x0] + integral[y0][x0]
			mean := int(sum) / area

			px := int(g.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			if px > mean-offset {
				out.SetGray(bounds.Min.X+x, bounds.Min.Y+y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// integralImage builds a (h+1)x(w+1) summed-area table.
func integralImage(g *image.Gray) [][]uint64 {
	bounds := g.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	table := make([][]uint64, h+1)
	for i := range table {
		table[i] = make([]uint64, w+1)
	}
	for y := 0; y < h; y++ {
		var rowSum uint64
		for x := 0; x < w; x++ {
			rowSum += uint64(g.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			table[y+1][x+1] = table[y][x+1] + rowSum
		}
	}
	return table
}

// otsuThreshold binarizes with the global threshold that maximizes
// between-class variance.
func otsuThreshold(g *image.Gray) *image.Gray {
	bounds := g.Bounds()
	var hist [256]int
	total := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[g.GrayAt(x, y).Y]++
			total++
		}
	}
	out := image.NewGray(bounds)
	if total == 0 {
		return out
	}

	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i) * float64(n)
	}

	var sumBack, weightBack float64
	var maxVariance float64
	threshold := 0
	for t := 0; t < 256; t++ {
		weightBack += float64(hist[t])
		if weightBack == 0 {
			continue
		}
		weightFore := float64(total) - weightBack
		if weightFore == 0 {
			break
		}
		sumBack += float64(t) * float64(hist[t])
		meanBack := sumBack / weightBack
		meanFore := (sumAll - sumBack) / weightFore
		variance := weightBack * weightFore * (meanBack - meanFore) * (meanBack - meanFore)
		if variance > maxVariance {
			maxVariance = variance
			threshold = t
		}
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if int(g.GrayAt(x, y).Y) > threshold {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// clahe applies contrast-limited adaptive histogram equalization over a
// tiles x tiles grid with bilinear interpolation between tile mappings.
func clahe(g *image.Gray, clipLimit float64, tiles int) *image.Gray {
	bounds := g.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewGray(bounds)
	if w == 0 || h == 0 {
		return out
	}
	if tiles < 1 {
		tiles = 1
	}

	tileW := (w + tiles - 1) / tiles
	tileH := (h + tiles - 1) / tiles

	// Per-tile clipped-histogram equalization mappings.
	mappings := make([][][256]uint8, tiles)
	for ty := 0; ty < tiles; ty++ {
		mappings[ty] = make([][256]uint8, tiles)
		for tx := 0; tx < tiles; tx++ {
			mappings[ty][tx] = tileMapping(g, bounds, tx*tileW, ty*tileH, tileW, tileH, clipLimit)
		}
	}

	// Bilinear interpolation between the four surrounding tile centers.
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := clampInt(int(fy), 0, tiles-1)
		ty1 := clampInt(ty0+1, 0, tiles-1)
		wy := fy - float64(ty0)
		if wy < 0 {
			wy = 0
		}
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := clampInt(int(fx), 0, tiles-1)
			tx1 := clampInt(tx0+1, 0, tiles-1)
			wx := fx - float64(tx0)
			if wx < 0 {
				wx = 0
			}

			v := g.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y
			top := (1-wx)*float64(mappings[ty0][tx0][v]) + wx*float64(mappings[ty0][tx1][v])
			bottom := (1-wx)*float64(mappings[ty1][tx0][v]) + wx*float64(mappings[ty1][tx1][v])
			out.SetGray(bounds.Min.X+x, bounds.Min.Y+y,
				color.Gray{Y: uint8((1-wy)*top + wy*bottom + 0.5)})
		}
	}
	return out
}

// tileMapping computes the clipped equalization lookup table for one tile.
func tileMapping(g *image.Gray, bounds image.Rectangle, ox, oy, tw, th int, clipLimit float64) [256]uint8 {
	w, h := bounds.Dx(), bounds.Dy()
	var hist [256]int
	count := 0
	for y := oy; y < oy+th && y < h; y++ {
		for x := ox; x < ox+tw && x < w; x++ {
			hist[g.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y]++
			count++
		}
	}

	var mapping [256]uint8
	if count == 0 {
		for i := range mapping {
			mapping[i] = uint8(i)
		}
		return mapping
	}

	// Clip the histogram and redistribute the excess uniformly.
	limit := int(clipLimit * float64(count) / 256)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for i, n := range hist {
		if n > limit {
			excess += n - limit
			hist[i] = limit
		}
	}
	share := excess / 256
	for i := range hist {
		hist[i] += share
	}
	// Spread the remainder so the histogram total stays equal to the pixel
	// count; otherwise the equalization scale drifts dark.
	for i := 0; i < excess%256; i++ {
		hist[i]++
	}

	cdf := 0
	scale := 255.0 / float64(count)
	for i := 0; i < 256; i++ {
		cdf += hist[i]
		mapping[i] = uint8(clampInt(int(float64(cdf)*scale+0.5), 0, 255))
	}
	return mapping
}

// dilate grows white regions by radius pixels (max filter).
func dilate(g *image.Gray, radius int) *image.Gray {
	if radius <= 0 {
		return g
	}
	return rankFilter(g, radius, true)
}

// erode shrinks white regions by radius pixels (min filter).
func erode(g *image.Gray, radius int) *image.Gray {
	if radius <= 0 {
		return g
	}
	return rankFilter(g, radius, false)
}

func rankFilter(g *image.Gray, radius int, takeMax bool) *image.Gray {
	bounds := g.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			var best uint8
			if !takeMax {
				best = 255
			}
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					nx, ny := x+dx, y+dy
					if nx < bounds.Min.X || nx >= bounds.Max.X || ny < bounds.Min.Y || ny >= bounds.Max.Y {
						continue
					}
					v := g.GrayAt(nx, ny).Y
					if takeMax && v > best {
						best = v
					} else if !takeMax && v < best {
						best = v
					}
				}
			}
			out.SetGray(x, y, color.Gray{Y: best})
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
