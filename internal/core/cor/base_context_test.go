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

package cor_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseRemovesTempFilesAndDirs(t *testing.T) {
	base := t.TempDir()

	file := filepath.Join(base, "frame.jpg")
	require.NoError(t, os.WriteFile(file, []byte("jpeg"), 0o600))

	dir := filepath.Join(base, "scratch")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "video.mp4"), []byte("mp4"), 0o600))

	chCtx := cor.NewBaseContext()
	chCtx.AddTempFile(file)
	chCtx.AddTempDir(dir)
	chCtx.AddTempFile(filepath.Join(base, "already-gone"))
	chCtx.Close()

	assert.NoFileExists(t, file)
	assert.NoDirExists(t, dir)
}

func TestContextIsSafeForConcurrentWriters(t *testing.T) {
	chCtx := cor.NewBaseContext()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("scene-%d", i)
			chCtx.Add(key, i)
			if i%4 == 0 {
				chCtx.AddError(key, errors.New("failed"))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 31, chCtx.Get("scene-31"))
	assert.Len(t, chCtx.GetErrors(), 8)
}

func TestGetErrorsReturnsCopy(t *testing.T) {
	chCtx := cor.NewBaseContext()
	chCtx.AddError("a", errors.New("x"))

	errs := chCtx.GetErrors()
	delete(errs, "a")

	assert.True(t, chCtx.HasErrors())
}
