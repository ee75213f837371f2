package cli

import (
	"bufio"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nbutton23/zxcvbn-go"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/fahmaliyi/sealvault/vault"
)

// Prompter reads interactive input. Password must not echo.
type Prompter interface {
	Password(prompt string) ([]byte, error)
	Line(prompt string) (string, error)
}

type termPrompter struct {
	in     *os.File
	out    io.Writer
	reader *bufio.Reader
}

// NewTermPrompter prompts on out and reads from in. When in is not a
// terminal, passwords are read as plain lines so the CLI can be scripted.
func NewTermPrompter(in *os.File, out io.Writer) Prompter {
	return &termPrompter{in: in, out: out, reader: bufio.NewReader(in)}
}

func (p *termPrompter) Password(prompt string) ([]byte, error) {
	fmt.Fprint(p.out, prompt)
	fd := int(p.in.Fd())
	if !term.IsTerminal(fd) {
		line, err := p.readLine()
		return []byte(line), err
	}
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read password")
	}
	return pw, nil
}

func (p *termPrompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	return p.readLine()
}

func (p *termPrompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", errors.Wrap(err, "cannot read input")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// DefaultVaultPath returns the default vault location under the home
// directory. The directory is created by the first write, not here.
func DefaultVaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".go-vault", "vault.json"), nil
}

// GeneratePassword returns 16 URL-safe characters built from 12 random
// bytes.
func GeneratePassword() (string, error) {
	b := make([]byte, 12)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", errors.Wrap(err, "cannot generate password")
	}
	defer vault.Zero(b)
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// newMasterPassword prompts twice and checks the answers match and meet
// the configured strength policy.
func (a *app) newMasterPassword(prompt string) ([]byte, error) {
	pw, err := a.prompt.Password(prompt)
	if err != nil {
		return nil, err
	}
	confirm, err := a.prompt.Password("Confirm master password: ")
	if err != nil {
		vault.Zero(pw)
		return nil, err
	}
	defer vault.Zero(confirm)

	if subtle.ConstantTimeCompare(pw, confirm) != 1 {
		vault.Zero(pw)
		return nil, userErrorf("passwords do not match")
	}

	score := zxcvbn.PasswordStrength(string(pw), nil).Score
	if need := a.cfg.GetInt(keyMinScore); score < need {
		vault.Zero(pw)
		return nil, userErrorf("master password is too weak (strength %d/4, need %d)", score, need)
	}
	if score < 3 {
		a.warnf("Master password is weak (strength %d/4).", score)
	}
	return pw, nil
}

// confirmed asks the user to type YES unless skip is set.
func (a *app) confirmed(question string, skip bool) (bool, error) {
	if skip {
		return true, nil
	}
	answer, err := a.prompt.Line(question + " Type YES to confirm: ")
	if err != nil {
		return false, err
	}
	return answer == "YES", nil
}
