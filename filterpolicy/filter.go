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

// Package filterpolicy supplies the per-block approximate membership
// filters that let a table reader skip a block without reading it. A
// FilterPolicy's output is opaque to everyone but the policy itself;
// table.FilterBlockBuilder and table.FilterBlockReader never look inside
// the bytes it produces.
package filterpolicy

// FilterPolicy builds and probes the filter bytes stored per block range
// in a table's filter block.
type FilterPolicy interface {
	// Name identifies the policy. It is written into the table's
	// meta-index block as "filter.<Name>" so a reader opening the table
	// can refuse to use a filter it doesn't understand rather than
	// silently mis-querying it.
	Name() string
	// CreateFilter builds a single filter covering all of keys.
	CreateFilter(keys [][]byte) []byte
	// KeyMayMatch reports whether key might be present in the set that
	// filter was built from. False negatives are never allowed; false
	// positives are the whole point of the space/accuracy tradeoff.
	KeyMayMatch(key, filter []byte) bool
}
