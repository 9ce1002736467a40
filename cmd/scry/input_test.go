package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyReader_LineMode(t *testing.T) {
	k := newKeyReader(strings.NewReader("\n  4 \nquit\n"))
	assert.False(t, k.Interactive())

	key, err := k.readKey()
	require.NoError(t, err)
	assert.Equal(t, '\n', key)

	key, err = k.readKey()
	require.NoError(t, err)
	assert.Equal(t, '4', key)

	_, err = k.readKey()
	assert.ErrorIs(t, err, errQuit)

	_, err = k.readKey()
	assert.ErrorIs(t, err, errQuit, "end of input quits")
}

func TestKeyReader_LastLineWithoutNewline(t *testing.T) {
	k := newKeyReader(strings.NewReader("3"))

	key, err := k.readKey()
	require.NoError(t, err)
	assert.Equal(t, '3', key)
}
