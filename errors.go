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

package gsst

import (
	"github.com/pkg/errors"
	"github.com/sausheong/gsst/table"
)

// ErrKeyNotFound is returned by Get when a lookup key has no visible entry
// at the requested snapshot, or its latest visible entry is a deletion.
var ErrKeyNotFound = errors.New("gsst: key not found")

// ErrInvalidArgument is table.ErrInvalidArgument re-exported at the
// package root; Builder.SetComparator returns it when called after the
// first Add.
var ErrInvalidArgument = table.ErrInvalidArgument

// ErrEmptyKey is returned by Get if an empty key is passed to it.
var ErrEmptyKey = errors.New("gsst: key cannot be empty")

// ErrIteratorClosed is returned by any positioning call made on a
// DBIterator after Close.
var ErrIteratorClosed = errors.New("gsst: iterator closed")
