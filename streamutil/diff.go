// Package streamutil compares byte streams, typically two serializations
// of the same workbook.
package streamutil

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrOddRegions is returned when the allowable regions are not a list of
// offset/length pairs.
var ErrOddRegions = errors.New("streamutil: allowable regions must be offset/length pairs")

// Options controls diagnostics. A nil *Options writes them to stdout.
type Options struct {
	Logfile io.Writer
}

func (o *Options) warnf(format string, args ...interface{}) {
	w := io.Writer(os.Stdout)
	if o != nil {
		w = o.Logfile
	}
	if w != nil {
		fmt.Fprintf(w, "streamutil: "+format+"\n", args...)
	}
}

// DiffStreams is Diff with default options.
func DiffStreams(a, b io.ReadCloser, allowable []int) ([]int, error) {
	return Diff(a, b, allowable, nil)
}

// Diff compares a and b byte by byte and returns the offsets at which
// they differ, or nil when they are equal. Offsets inside the allowable
// regions, given as a flat list of offset/length pairs, are not
// reported. Streams of different length give [-1, shorter length].
//
// Both streams are closed. A close failure is returned when the
// comparison itself succeeded; otherwise it is logged and the first
// error returned.
func Diff(a, b io.ReadCloser, allowable []int, opts *Options) (diffs []int, err error) {
	defer func() {
		for _, c := range []io.Closer{a, b} {
			cerr := c.Close()
			if cerr == nil {
				continue
			}
			if err != nil {
				opts.warnf("ignoring close failure after %v: %v", err, cerr)
				continue
			}
			diffs, err = nil, fmt.Errorf("streamutil: close: %w", cerr)
		}
	}()
	if len(allowable)%2 != 0 {
		return nil, ErrOddRegions
	}
	allowed := func(pos int) bool {
		for i := 0; i < len(allowable); i += 2 {
			if pos >= allowable[i] && pos < allowable[i]+allowable[i+1] {
				return true
			}
		}
		return false
	}

	ra, rb := bufio.NewReader(a), bufio.NewReader(b)
	for pos := 0; ; pos++ {
		x, errA := ra.ReadByte()
		y, errB := rb.ReadByte()
		if errA != nil && errA != io.EOF {
			return nil, fmt.Errorf("streamutil: reading first stream: %w", errA)
		}
		if errB != nil && errB != io.EOF {
			return nil, fmt.Errorf("streamutil: reading second stream: %w", errB)
		}
		switch {
		case errA == io.EOF && errB == io.EOF:
			return diffs, nil
		case errA == io.EOF || errB == io.EOF:
			return []int{-1, pos}, nil
		}
		if x != y && !allowed(pos) {
			diffs = append(diffs, pos)
		}
	}
}
