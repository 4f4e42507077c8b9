package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/ringlights/internal/expander"
	"github.com/coreman2200/ringlights/internal/pixel"
)

func TestDump(t *testing.T) {
	c := &expander.Codec{}
	good, err := c.EncodePixelFrame(1, []pixel.Pixel{pixel.RGB(1, 2, 3)})
	require.NoError(t, err)
	bad := append([]byte(nil), good...)
	bad[len(bad)-1] ^= 0xff

	var stream bytes.Buffer
	stream.WriteString("xx")
	stream.Write(good)
	stream.Write(bad)
	stream.Write(c.EncodeLatchFrame())

	st := dump(expander.NewDecoder(&stream), true)
	assert.Equal(t, stats{frames: 1, latches: 1, badCRC: 1, skipped: 2}, st)
}

func TestDumpSurvivesBadOrderByte(t *testing.T) {
	c := &expander.Codec{}
	var stream bytes.Buffer
	stream.Write([]byte{'U', 'P', 'X', 'L', 0, 1, 4, 0x00, 0, 0, 0, 0, 0, 0})
	stream.Write(c.EncodeLatchFrame())

	st := dump(expander.NewDecoder(&stream), false)
	assert.Equal(t, stats{latches: 1, badFrames: 1, skipped: 4}, st)
}
