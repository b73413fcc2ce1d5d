// {{{ Copyright (c) Paul R. Tagliamonte <paul@k3xec.com>, 2020
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE. }}}

// Command cellsync-replay drives a cellsync.Session from a recorded IQ
// capture file and prints the subframe index sequence it reports, for
// sanity-checking a capture's framing without a full receiver chain.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"lte.tools/cellsync"
	"lte.tools/cellsync/filesource"
)

func main() {
	var (
		nofPRB = pflag.Uint32P("nof-prb", "p", 25, "cell resource block count")
		cellID = pflag.Uint32P("cell-id", "c", cellsync.CellIDUnknown, "physical cell id, or 1000 for unknown")
		nofSF  = pflag.IntP("count", "n", 100, "number of subframes to replay")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <capture-file>\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	if err := run(pflag.Arg(0), *nofPRB, *cellID, *nofSF); err != nil {
		fmt.Fprintln(os.Stderr, "cellsync-replay:", err)
		os.Exit(1)
	}
}

func run(path string, nofPRB, cellID uint32, count int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cell := cellsync.Cell{
		NofPRB:   nofPRB,
		NofPorts: 1,
		ID:       cellID,
		CP:       cellsync.CPNormal,
	}

	src := filesource.New(f)
	session, err := cellsync.NewFileSession(cell, src)
	if err != nil {
		return err
	}
	defer session.Close()

	for i := 0; i < count; i++ {
		_, status, err := session.GetBuffer()
		if err != nil {
			return err
		}
		if status != 1 {
			continue
		}
		fmt.Printf("subframe %4d: sf_idx=%d\n", i, session.SFIdx())
	}
	return nil
}

// vim: foldmethod=marker
