// Copyright 2025 Canarygate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bucket_test

import (
	"fmt"
	"hash/fnv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canarygate/canarygate/pkg/bucket"
)

func TestOfMatchesReferenceFNV1a(t *testing.T) {
	// The bucket function must implement standard 32-bit FNV-1a so that the
	// mapping is stable across implementations and process restarts.
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("client-%d", i)
		h := fnv.New32a()
		_, err := h.Write([]byte(id))
		require.NoError(t, err)
		want := int(h.Sum32() % bucket.NumBuckets)

		got, err := bucket.Of(id)
		require.NoError(t, err)
		assert.Equal(t, want, got, "id %q", id)
	}
}

func TestOfDeterministic(t *testing.T) {
	ids := []string{"alice", "bob", "4a5b6c", "user:1234", "10.0.0.1|Mozilla/5.0"}
	for _, id := range ids {
		first, err := bucket.Of(id)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			b, err := bucket.Of(id)
			require.NoError(t, err)
			assert.Equal(t, first, b)
		}
	}
}

func TestOfRange(t *testing.T) {
	for i := 0; i < 10000; i++ {
		b, err := bucket.Of(fmt.Sprintf("range-check-%d", i))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, bucket.NumBuckets)
	}
}

func TestOfRoughlyUniform(t *testing.T) {
	// With 100k identifiers every bucket should see close to 1k hits. A loose
	// bound is enough to catch gross skew without making the test flaky.
	counts := make([]int, bucket.NumBuckets)
	for i := 0; i < 100000; i++ {
		b, err := bucket.Of(fmt.Sprintf("uniformity-%d", i))
		require.NoError(t, err)
		counts[b]++
	}
	for b, c := range counts {
		assert.Greater(t, c, 700, "bucket %d underpopulated", b)
		assert.Less(t, c, 1300, "bucket %d overpopulated", b)
	}
}

func TestOfEmptyInput(t *testing.T) {
	_, err := bucket.Of("")
	assert.ErrorIs(t, err, bucket.ErrInvalidInput)
}

func TestSumStable(t *testing.T) {
	h := fnv.New32a()
	_, err := h.Write([]byte("stable-input"))
	require.NoError(t, err)
	assert.Equal(t, h.Sum32(), bucket.Sum("stable-input"))
}
