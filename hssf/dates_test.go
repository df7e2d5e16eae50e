package hssf

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateAsTuple(t *testing.T) {
	for _, tc := range []struct {
		serial   float64
		date1904 bool
		want     DateTuple
	}{
		{61, false, DateTuple{Year: 1900, Month: 3, Day: 1}},
		{45306.5, false, DateTuple{Year: 2024, Month: 1, Day: 15, Hour: 12}},
		{0.75, false, DateTuple{Hour: 18}},
		{1, true, DateTuple{Year: 1904, Month: 1, Day: 2}},
		{0, false, DateTuple{}},
	} {
		got, err := DateAsTuple(tc.serial, tc.date1904)
		require.NoError(t, err, tc.serial)
		assert.Equal(t, tc.want, got, tc.serial)
	}
}

func TestDateAsTupleErrors(t *testing.T) {
	_, err := DateAsTuple(-1, false)
	var neg *DateNegative
	assert.True(t, errors.As(err, &neg))

	_, err = DateAsTuple(59, false)
	var amb *DateAmbiguous
	assert.True(t, errors.As(err, &amb))

	_, err = DateAsTuple(2958466, false)
	var big *DateTooLarge
	assert.True(t, errors.As(err, &big))
}

func TestDateFromExcel(t *testing.T) {
	for _, tc := range []struct {
		serial   float64
		date1904 bool
		want     time.Time
	}{
		{59, false, time.Date(1900, 2, 28, 0, 0, 0, 0, time.UTC)},
		{61, false, time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC)},
		{45306.5, false, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)},
		{0, true, time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)},
	} {
		got, err := DateFromExcel(tc.serial, tc.date1904)
		require.NoError(t, err)
		assert.True(t, tc.want.Equal(got), "%v: got %v", tc.serial, got)
	}
	_, err := DateFromExcel(-0.5, false)
	assert.Error(t, err)
}

func TestDateFromTuple(t *testing.T) {
	v, err := DateFromTuple(2024, 1, 15, false)
	require.NoError(t, err)
	assert.Equal(t, 45306.0, v)

	v, err = DateFromTuple(1900, 3, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 61.0, v)

	_, err = DateFromTuple(1900, 2, 28, false)
	var amb *DateAmbiguous
	assert.True(t, errors.As(err, &amb))

	_, err = DateFromTuple(2023, 2, 29, false)
	var bad *DateBadTuple
	assert.True(t, errors.As(err, &bad))

	v, err = TimeFromTuple(12, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)
	_, err = TimeFromTuple(24, 0, 0)
	assert.True(t, errors.As(err, &bad))
}

func TestIsDateFormat(t *testing.T) {
	for _, tc := range []struct {
		idx  int
		s    string
		want bool
	}{
		{0x0E, "", true},
		{0x2F, "", true},
		{164, "yyyy-mm-dd", true},
		{164, "[h]:mm", true},
		{164, "0.00", false},
		{164, `"y"0.00`, false},
		{164, "[Red]0.00", false},
		{164, "General", false},
		{164, `\d0`, false},
		{0, "", false},
	} {
		assert.Equal(t, tc.want, IsDateFormat(tc.idx, tc.s), "%d %q", tc.idx, tc.s)
	}
}
