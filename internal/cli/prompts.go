package cli

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// readPasswordFn reads a password with hidden input. Tests replace it.
//
//nolint:gochecknoglobals // Replaceable for tests
var readPasswordFn = func(fd int) ([]byte, error) {
	return term.ReadPassword(fd)
}

// isTerminalFn reports whether fd is a terminal. Tests replace it.
//
//nolint:gochecknoglobals // Replaceable for tests
var isTerminalFn = term.IsTerminal

func stdinFd() int {
	return int(os.Stdin.Fd()) //nolint:gosec // stdin descriptor fits in int
}

// interactive reports whether the command reads from a terminal.
func interactive(cmd *cobra.Command) bool {
	return cmd.InOrStdin() == os.Stdin && isTerminalFn(stdinFd())
}

// promptPassword prompts for a password. On a terminal the input is hidden;
// otherwise one line is read from the command's input.
func promptPassword(cmd *cobra.Command, prompt string) (string, error) {
	if !interactive(cmd) {
		return readLine(cmd.InOrStdin())
	}

	fd := stdinFd()
	out(cmd.ErrOrStderr(), "%s", prompt)
	password, err := readPasswordFn(fd)
	outln(cmd.ErrOrStderr()) // Add newline after hidden input
	if err != nil {
		return "", qwerr.Wrap(err, "reading password")
	}
	return string(password), nil
}

// promptLine prompts for one line of visible input.
func promptLine(cmd *cobra.Command, prompt string) (string, error) {
	out(cmd.ErrOrStderr(), "%s", prompt)
	return readLine(cmd.InOrStdin())
}

// promptConfirmation asks a yes/no question. Anything but yes is a no.
func promptConfirmation(cmd *cobra.Command, question string) bool {
	out(cmd.ErrOrStderr(), "%s [y/N]: ", question)
	response, err := readLine(cmd.InOrStdin())
	if err != nil {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

//nolint:gochecknoglobals // Buffered view of the current command input
var (
	inputSource io.Reader
	inputReader *bufio.Reader
)

// lineReader returns one buffered reader per input so consecutive prompts
// do not lose what an earlier read buffered.
func lineReader(r io.Reader) *bufio.Reader {
	if r != inputSource {
		inputSource = r
		inputReader = bufio.NewReader(r)
	}
	return inputReader
}

// readLine reads a single line without its line ending.
func readLine(r io.Reader) (string, error) {
	line, err := lineReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", qwerr.WithSuggestion(qwerr.ErrInvalidInput, "no input provided")
		}
		return "", qwerr.Wrap(err, "reading input")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
