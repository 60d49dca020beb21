package parser

import (
	"testing"
	"time"

	pt "github.com/activecm/connwatch/parser/parsetypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCase struct {
	src string
	dst string
	out bool
	msg string
}

func TestFilterConn(t *testing.T) {
	filter, err := NewFilter(
		[]string{"Kareem", "scanner-lynnsie"},
		[]string{"Jadon", "Kareem", "scanner-*"},
	)
	require.Nil(t, err)

	// all permutations of being on the always and never lists
	plain := "Lynnsie"
	never := "Jadon"
	alwaysNever := "Kareem"
	pattern := "scanner-01"
	patternAlways := "scanner-lynnsie"

	testCases := []testCase{
		{plain, plain, false, "hosts on neither list should be kept"},
		{plain, never, true, "a never included destination should be ignored"},
		{never, plain, true, "a never included source should be ignored"},
		{alwaysNever, plain, false, "a host on both lists should be kept"},
		{alwaysNever, never, true, "a never included peer should still be ignored"},
		{pattern, plain, true, "a host matching a never pattern should be ignored"},
		{patternAlways, plain, false, "an always included host overrides a never pattern"},
	}

	for _, test := range testCases {
		conn := &pt.Conn{Time: time.Now(), Source: test.src, Destination: test.dst}
		assert.Equal(t, test.out, filter.FilterConn(conn), test.msg)
	}
	assert.Equal(t, int64(4), filter.Filtered())
}

func TestNewFilterRejectsBadPattern(t *testing.T) {
	_, err := NewFilter(nil, []string{"scanner-["})
	assert.NotNil(t, err)
}

func TestFilterHandler(t *testing.T) {
	filter, err := NewFilter(nil, []string{"Jadon"})
	require.Nil(t, err)

	handler := &recordingHandler{keep: true}
	filtered := filter.Handler(handler)

	assert.True(t, filtered.Ingest(&pt.Conn{Source: "Kareem", Destination: "Lynnsie"}))
	assert.False(t, filtered.Ingest(&pt.Conn{Source: "Jadon", Destination: "Lynnsie"}))

	assert.Equal(t, []string{"Kareem"}, handler.sources())
}
