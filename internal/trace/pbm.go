/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package trace

import (
	"bufio"
	"fmt"
	"image"
	"io"
)

// EncodePBM writes the pixels of img darker than threshold as a binary
// (P4) PBM bitmap, dark pixels set. It returns the number of set pixels.
func EncodePBM(w io.Writer, img *image.Gray, threshold uint8) (int, error) {
	b := img.Bounds()
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P4\n%d %d\n", b.Dx(), b.Dy()); err != nil {
		return 0, err
	}
	row := make([]byte, (b.Dx()+7)/8)
	set := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		clear(row)
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.GrayAt(x, y).Y < threshold {
				i := x - b.Min.X
				row[i/8] |= 0x80 >> (i % 8)
				set++
			}
		}
		if _, err := bw.Write(row); err != nil {
			return 0, err
		}
	}
	return set, bw.Flush()
}
