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

// Package bucket deterministically maps client identifiers to traffic
// buckets. The mapping is a pure function of the identifier: the same
// identifier lands in the same bucket across calls, process restarts and
// horizontally scaled instances. This is what keeps a returning client
// without a sticky assignment from flapping between versions.
package bucket

import (
	"errors"

	"github.com/canarygate/canarygate/pkg/private/serrors"
)

// NumBuckets is the size of the bucket space. Buckets are in [0, NumBuckets).
const NumBuckets = 100

// ErrInvalidInput indicates a client identifier that cannot be bucketed.
// Callers must supply a fallback identifier; defaulting to a fixed bucket
// would bias the traffic split.
var ErrInvalidInput = errors.New("invalid client identifier")

// fnv1aOffset32 is the initial state for the FNV-1a hash.
const fnv1aOffset32 uint32 = 2166136261

// hashFNV1a returns a hash value for the given state combined with the given
// byte. To hash a sequence of bytes, invoke for each byte, passing the
// returned value of one call as the state for the next.
func hashFNV1a(state uint32, c byte) uint32 {
	const prime32 = 16777619
	return (state ^ uint32(c)) * prime32
}

// Sum returns the stable FNV-1a hash of s.
func Sum(s string) uint32 {
	state := fnv1aOffset32
	for i := 0; i < len(s); i++ {
		state = hashFNV1a(state, s[i])
	}
	return state
}

// Of maps the client identifier to a bucket in [0, NumBuckets). It fails with
// ErrInvalidInput if the identifier is empty.
func Of(clientID string) (int, error) {
	if clientID == "" {
		return 0, serrors.Join(ErrInvalidInput, nil, "reason", "empty")
	}
	return int(Sum(clientID) % NumBuckets), nil
}
