/*
 *     Copyright 2023 The Stitch Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package imageutil converts encoded images into the fixed-size feature
// vectors the classifier consumes. Training and serving share this package,
// which keeps the two modes from drifting apart on preprocessing.
package imageutil

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

// Decode decodes jpeg or png bytes into an image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	return img, nil
}

// Features pools the image down to a grid x grid matrix of mean luminance
// values in [0, 1], flattened row-major. The pooling is a plain box average
// so the same image always yields the same vector.
func Features(img image.Image, grid int) []float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	features := make([]float64, grid*grid)
	for gy := 0; gy < grid; gy++ {
		y0 := bounds.Min.Y + gy*height/grid
		y1 := bounds.Min.Y + (gy+1)*height/grid
		if y1 <= y0 {
			y1 = y0 + 1
		}

		for gx := 0; gx < grid; gx++ {
			x0 := bounds.Min.X + gx*width/grid
			x1 := bounds.Min.X + (gx+1)*width/grid
			if x1 <= x0 {
				x1 = x0 + 1
			}

			var sum float64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					sum += luminance(img, x, y)
				}
			}

			features[gy*grid+gx] = sum / float64((y1-y0)*(x1-x0))
		}
	}

	return features
}

func luminance(img image.Image, x, y int) float64 {
	r, g, b, _ := img.At(x, y).RGBA()
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 65535.0
}
