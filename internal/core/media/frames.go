// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// EnvelopeSize fits a w x h frame into a maxW x maxH envelope keeping its
// aspect ratio. Portrait frames are fitted by height, others by width, and
// the result never exceeds the envelope on either side.
func EnvelopeSize(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	var nw, nh float64
	if h > w {
		nh = float64(maxH)
		nw = float64(w) * nh / float64(h)
	} else {
		nw = float64(maxW)
		nh = float64(h) * nw / float64(w)
	}
	if nw > float64(maxW) {
		nh = nh * float64(maxW) / nw
		nw = float64(maxW)
	}
	if nh > float64(maxH) {
		nw = nw * float64(maxH) / nh
		nh = float64(maxH)
	}
	return max(1, int(nw+0.5)), max(1, int(nh+0.5))
}

// Resize scales src into the envelope with Catmull-Rom resampling.
func Resize(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	w, h := EnvelopeSize(b.Dx(), b.Dy(), maxW, maxH)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// FrameToJPEG decodes an extracted frame, fits it into the envelope and
// re-encodes it as JPEG at the given quality.
func FrameToJPEG(frame []byte, maxW, maxH int, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Resize(img, maxW, maxH), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
