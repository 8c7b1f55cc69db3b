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
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sausheong/gsst"
	"github.com/sausheong/gsst/internalkey"
)

var (
	dumpVerifyChecksums bool
	dumpUseMmap         bool
)

var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Print every entry in a table file, in key order",
	Args:  cobra.ExactArgs(1),
	RunE:  doDump,
}

func init() {
	dumpCmd.Flags().BoolVar(&dumpVerifyChecksums, "verify-checksums", false,
		"verify each block's CRC32C while reading")
	dumpCmd.Flags().BoolVar(&dumpUseMmap, "mmap", true,
		"read the table through a zero-copy mmap instead of pread")
	rootCmd.AddCommand(dumpCmd)
}

func doDump(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	opts := gsst.DefaultOptions()
	opts.ParanoidChecks = dumpVerifyChecksums
	reader, size, closeFile, err := gsst.OpenTable(ctx, args[0], opts, dumpUseMmap)
	if err != nil {
		return err
	}
	defer closeFile()

	it := reader.NewIterator(ctx)
	defer it.Close()

	count := 0
	for it.SeekToFirst(); it.Valid(); it.Next() {
		pik, ok := internalkey.ParseInternalKey(it.Key())
		if !ok {
			fmt.Fprintf(os.Stderr, "corrupt internal key at entry %d\n", count)
			continue
		}
		fmt.Printf("%s @%d/%d -> %s\n", pik.UserKey, pik.Seq, pik.Type, it.Value())
		count++
	}
	if err := it.Error(); err != nil {
		return err
	}
	fmt.Printf("%d entries, %s on disk\n", count, humanize.IBytes(uint64(size)))
	return nil
}
