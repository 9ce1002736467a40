package main

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// errQuit is returned by keyReader when the reviewer asks to stop.
var errQuit = errors.New("quit")

const ctrlC = 3

// keyReader reads single keystrokes from a terminal in raw mode, or lines
// from any other reader.
type keyReader struct {
	in    io.Reader
	lines *bufio.Reader
	fd    int
	raw   bool
}

func newKeyReader(in io.Reader) *keyReader {
	k := &keyReader{in: in}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		k.fd = int(f.Fd())
		k.raw = true
		return k
	}
	k.lines = bufio.NewReader(in)
	return k
}

// Interactive reports whether keys come from a terminal.
func (k *keyReader) Interactive() bool {
	return k.raw
}

// readKey returns the next key. In line mode it is the first non-blank
// character of the next line, or '\n' for a blank line. q, Ctrl-C and the
// end of input return errQuit.
func (k *keyReader) readKey() (rune, error) {
	var key rune
	if k.raw {
		state, err := term.MakeRaw(k.fd)
		if err != nil {
			return 0, err
		}
		buf := make([]byte, 1)
		_, err = k.in.Read(buf)
		_ = term.Restore(k.fd, state)
		if err != nil {
			return 0, err
		}
		key = rune(buf[0])
	} else {
		line, err := k.lines.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			if errors.Is(err, io.EOF) {
				return 0, errQuit
			}
			return 0, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			key = '\n'
		} else {
			key = []rune(line)[0]
		}
	}

	switch key {
	case 'q', 'Q', ctrlC:
		return 0, errQuit
	}
	return key, nil
}
