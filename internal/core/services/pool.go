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

package services

import (
	"sync"
)

// RunPool runs task for every index in [0, n) on a pool of workers and
// returns the results indexed like the inputs.
//
// Jobs and results travel over channels sized to n so distribution never
// blocks. Each result carries its index, which is how callers get input
// order back regardless of completion order.
func RunPool[R any](workers int, n int, task func(i int) R) []R {
	out := make([]R, n)
	if n == 0 {
		return out
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	type result struct {
		index int
		value R
	}
	var wg sync.WaitGroup
	jobs := make(chan int, n)
	results := make(chan result, n)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results <- result{index: i, value: task(i)}
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(results)

	for r := range results {
		out[r.index] = r.value
	}
	return out
}
