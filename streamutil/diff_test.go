package streamutil

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stream struct {
	r        io.Reader
	closed   bool
	closeErr error
}

func (s *stream) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *stream) Close() error {
	s.closed = true
	return s.closeErr
}

func newStream(data ...byte) *stream { return &stream{r: bytes.NewReader(data)} }

func TestDiffStreams(t *testing.T) {
	for _, tc := range []struct {
		name      string
		a, b      []byte
		allowable []int
		want      []int
	}{
		{"equal", []byte{1, 2, 3}, []byte{1, 2, 3}, nil, nil},
		{"empty", nil, nil, nil, nil},
		{"differences", []byte{1, 2, 3, 4}, []byte{1, 9, 3, 9}, nil, []int{1, 3}},
		{"allowed region", []byte{1, 2, 3, 4}, []byte{1, 9, 9, 4}, []int{1, 2}, nil},
		{"partly allowed", []byte{1, 2, 3, 4}, []byte{9, 9, 9, 4}, []int{1, 2}, []int{0}},
		{"first shorter", []byte{1, 2}, []byte{1, 2, 3}, nil, []int{-1, 2}},
		{"second shorter", []byte{1, 2, 3, 4}, []byte{7}, nil, []int{-1, 1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a, b := newStream(tc.a...), newStream(tc.b...)
			got, err := DiffStreams(a, b, tc.allowable)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.True(t, a.closed)
			assert.True(t, b.closed)
		})
	}
}

func TestOddRegionsRejectedBeforeReading(t *testing.T) {
	a := &stream{r: iotestErrReader{}}
	b := &stream{r: iotestErrReader{}}
	_, err := DiffStreams(a, b, make([]int, 15))
	assert.ErrorIs(t, err, ErrOddRegions)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

type iotestErrReader struct{}

func (iotestErrReader) Read([]byte) (int, error) { return 0, errRead }

var (
	errRead  = errors.New("read failed")
	errClose = errors.New("close failed")
)

func TestCloseFailureAfterSuccess(t *testing.T) {
	a := newStream(1, 2)
	b := newStream(1, 2)
	b.closeErr = errClose
	got, err := DiffStreams(a, b, nil)
	assert.ErrorIs(t, err, errClose)
	assert.Nil(t, got)
	assert.True(t, a.closed)
}

func TestCloseFailureDuringError(t *testing.T) {
	var log bytes.Buffer
	a := &stream{r: iotestErrReader{}, closeErr: errClose}
	b := newStream(1)
	_, err := Diff(a, b, nil, &Options{Logfile: &log})
	assert.ErrorIs(t, err, errRead)
	assert.NotErrorIs(t, err, errClose)
	assert.Contains(t, log.String(), "close failed")
	assert.True(t, b.closed)
}
