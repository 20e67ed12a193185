package auth

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ReadKey reads a key from in. On a terminal the user is prompted on prompt and
// the input is not echoed; otherwise the first line of in is used.
func ReadKey(in *os.File, prompt io.Writer) (string, error) {
	fd := int(in.Fd()) // #nosec G115 -- file descriptors fit in int
	if term.IsTerminal(fd) {
		fmt.Fprint(prompt, "API key: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return "", fmt.Errorf("no key provided")
	}
	return key, nil
}
