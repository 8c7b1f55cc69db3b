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

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sausheong/gsst"
	"github.com/sausheong/gsst/internalkey"
)

var (
	getSequence uint64
	getUseMmap  bool
)

var getCmd = &cobra.Command{
	Use:   "get <file> <key>",
	Short: "Look up the newest visible entry for a key through the table's filter and cache",
	Args:  cobra.ExactArgs(2),
	RunE:  doGet,
}

func init() {
	getCmd.Flags().Uint64Var(&getSequence, "seq", internalkey.MaxSequenceNumber,
		"snapshot sequence number to search at or below")
	getCmd.Flags().BoolVar(&getUseMmap, "mmap", true,
		"read the table through a zero-copy mmap instead of pread")
	rootCmd.AddCommand(getCmd)
}

func doGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	opts := gsst.DefaultOptions()
	reader, _, closeFile, err := gsst.OpenTable(ctx, args[0], opts, getUseMmap)
	if err != nil {
		return err
	}
	defer closeFile()

	value, err := gsst.Get(ctx, opts.UserComparator(), reader, []byte(args[1]), getSequence)
	if errors.Is(err, gsst.ErrKeyNotFound) {
		fmt.Printf("%s: not found\n", args[1])
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s -> %s\n", args[1], value)
	return nil
}
