package command

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// ReadSecret prompts on stderr and reads a line from stdin without echo. When stdin is not a
// terminal the line is read as is, which allows piping secrets in.
func ReadSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(os.Stdin)
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.Wrap(err, "failed to read secret")
	}

	return strings.TrimSpace(string(b)), nil
}

func readLine(r io.Reader) (string, error) {
	var (
		sb  strings.Builder
		buf = make([]byte, 1)
	)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", errors.Wrap(err, "failed to read secret")
		}
	}

	return strings.TrimSpace(sb.String()), nil
}
