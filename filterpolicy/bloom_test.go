/*
 * Copyright 2017 Dgraph Labs, Inc. and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package filterpolicy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBloomPolicyNoFalseNegatives(t *testing.T) {
	p := NewBloomPolicy(10)
	keys := make([][]byte, 0, 200)
	for i := 0; i < 200; i++ {
		keys = append(keys, []byte(fmt.Sprintf("key-%04d", i)))
	}
	filter := p.CreateFilter(keys)
	for _, k := range keys {
		require.True(t, p.KeyMayMatch(k, filter), "false negative for %q", k)
	}
}

func TestBloomPolicyLowFalsePositiveRate(t *testing.T) {
	p := NewBloomPolicy(10)
	keys := make([][]byte, 0, 1000)
	for i := 0; i < 1000; i++ {
		keys = append(keys, []byte(fmt.Sprintf("present-%05d", i)))
	}
	filter := p.CreateFilter(keys)

	falsePositives := 0
	for i := 0; i < 10000; i++ {
		absent := []byte(fmt.Sprintf("absent-%05d", i))
		if p.KeyMayMatch(absent, filter) {
			falsePositives++
		}
	}
	// 10 bits/key should land well under 5%; this is a loose bound to
	// keep the test from being flaky rather than a precise claim.
	require.Less(t, falsePositives, 500)
}

func TestBloomPolicyEmptyFilterRejectsEverything(t *testing.T) {
	p := NewBloomPolicy(10)
	filter := p.CreateFilter(nil)
	require.False(t, p.KeyMayMatch([]byte("anything"), filter))
}

func TestBloomPolicyName(t *testing.T) {
	require.Equal(t, "leveldb.BuiltinBloomFilter", NewBloomPolicy(10).Name())
}
