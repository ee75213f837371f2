package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/fahmaliyi/sealvault/vault"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitUser        = 1
	ExitEnvironment = 2
	ExitData        = 3
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// userError is a front-end failure the user can fix, such as mismatched
// confirmation passwords.
type userError struct {
	msg string
}

func (e userError) Error() string { return e.msg }

func userErrorf(format string, args ...interface{}) error {
	return userError{msg: fmt.Sprintf(format, args...)}
}

// missingVaultError marks a not-found error for the configured vault, as
// opposed to an import source or other path named on the command line.
type missingVaultError struct {
	err error
}

func (e missingVaultError) Error() string { return e.err.Error() }
func (e missingVaultError) Unwrap() error { return e.err }

// vaultErr tags err when it reports that the configured vault is missing.
// Only use it for operations that read a.vaultPath().
func (a *app) vaultErr(err error) error {
	if errors.Is(err, vault.ErrNotFound) {
		return missingVaultError{err: err}
	}
	return err
}

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var uerr userError
	if errors.As(err, &uerr) {
		return ExitUser
	}
	switch vault.KindOf(err) {
	case vault.KindUser:
		return ExitUser
	case vault.KindData:
		return ExitData
	default:
		return ExitEnvironment
	}
}

// Message renders err for the user. Authentication failures never say
// whether the password or the file was at fault.
func Message(err error) string {
	switch {
	case errors.Is(err, vault.ErrAuthFailed):
		return "incorrect master password or corrupted vault"
	case errors.As(err, new(missingVaultError)):
		return fmt.Sprintf("vault not found (%v); run 'vault init' first", err)
	case errors.Is(err, vault.ErrNotFound):
		return fmt.Sprintf("file not found (%v)", err)
	case errors.Is(err, vault.ErrAlreadyExists):
		return fmt.Sprintf("vault already exists (%v)", err)
	case errors.Is(err, vault.ErrEntryNotFound):
		return fmt.Sprintf("no such entry (%v)", err)
	case errors.Is(err, vault.ErrCorrupt), errors.Is(err, vault.ErrMalformedToken):
		return fmt.Sprintf("vault file is damaged and was not modified: %v", err)
	default:
		return err.Error()
	}
}

func (a *app) successf(format string, args ...interface{}) {
	fmt.Fprintln(a.out, successStyle.Render(fmt.Sprintf(format, args...)))
}

func (a *app) warnf(format string, args ...interface{}) {
	fmt.Fprintln(a.errOut, warnStyle.Render(fmt.Sprintf(format, args...)))
}
