package client

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// ReadPassword writes prompt to out and reads a password. When fd is a
// terminal the input is not echoed; otherwise a plain line is read from in,
// which lets scripts pipe credentials.
func ReadPassword(out io.Writer, prompt string, fd int, in *bufio.Reader) (string, error) {
	fmt.Fprint(out, prompt)
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		return string(b), err
	}
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
