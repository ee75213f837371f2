package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fahmaliyi/sealvault/vault"
)

// scriptedPrompter answers prompts from a fixed list.
type scriptedPrompter struct {
	answers []string
	prompts []string
}

func (s *scriptedPrompter) next(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.answers) == 0 {
		return "", io.EOF
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func (s *scriptedPrompter) Password(prompt string) ([]byte, error) {
	a, err := s.next(prompt)
	return []byte(a), err
}

func (s *scriptedPrompter) Line(prompt string) (string, error) {
	return s.next(prompt)
}

type harness struct {
	t    *testing.T
	path string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return &harness{t: t, path: filepath.Join(t.TempDir(), "v.vault")}
}

func (h *harness) run(answers []string, args ...string) (string, error) {
	var out, errOut bytes.Buffer
	root := NewRootCmd(&scriptedPrompter{answers: answers}, &out, &errOut)
	root.SetArgs(append([]string{"--vault", h.path, "--kdf-iterations", "1000"}, args...))
	err := root.Execute()
	return out.String() + errOut.String(), err
}

const master = "correct horse battery staple"

func TestCLIScenario(t *testing.T) {
	h := newHarness(t)

	out, err := h.run([]string{master, master}, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized new vault")

	out, err = h.run([]string{master}, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Vault empty.")

	out, err = h.run([]string{master, "a@b.com", "p@ss", "work mail"}, "add", "mail")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved entry: mail")
	assert.NotContains(t, out, "overwritten")

	out, err = h.run([]string{master}, "get", "mail")
	require.NoError(t, err)
	assert.Contains(t, out, "Username: a@b.com")
	assert.Contains(t, out, "Password: p@ss")
	assert.Contains(t, out, "Notes: work mail")

	out, err = h.run([]string{master, "b@c.com", "", ""}, "add", "mail")
	require.NoError(t, err)
	assert.Contains(t, out, "overwritten")
	assert.Contains(t, out, "Generated password:")

	out, err = h.run([]string{master}, "list")
	require.NoError(t, err)
	assert.Contains(t, out, " - mail")

	out, err = h.run([]string{master, "no"}, "delete", "mail")
	require.NoError(t, err)
	assert.Contains(t, out, "Delete cancelled.")

	_, err = h.run([]string{master, "YES"}, "delete", "mail")
	require.NoError(t, err)

	_, err = h.run([]string{master}, "get", "mail")
	assert.True(t, errors.Is(err, vault.ErrEntryNotFound))
	assert.Equal(t, ExitUser, ExitCode(err))
}

func TestCLIWrongPassword(t *testing.T) {
	h := newHarness(t)
	_, err := h.run([]string{master, master}, "init")
	require.NoError(t, err)

	_, err = h.run([]string{"wrong"}, "list")
	require.Error(t, err)
	assert.Equal(t, ExitUser, ExitCode(err))
	assert.Equal(t, "incorrect master password or corrupted vault", Message(err))
}

func TestCLIInitMismatch(t *testing.T) {
	h := newHarness(t)
	_, err := h.run([]string{master, "different"}, "init")
	require.Error(t, err)
	assert.Equal(t, ExitUser, ExitCode(err))
	_, statErr := os.Stat(h.path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCLIChangeMaster(t *testing.T) {
	h := newHarness(t)
	_, err := h.run([]string{master, master}, "init")
	require.NoError(t, err)
	_, err = h.run([]string{master, "u", "s", ""}, "add", "x")
	require.NoError(t, err)

	const next = "another long passphrase 42"
	out, err := h.run([]string{master, next, next}, "change-master", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Master password changed")

	_, err = h.run([]string{master}, "list")
	assert.True(t, errors.Is(err, vault.ErrAuthFailed))
	out, err = h.run([]string{next}, "get", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "Password: s")
}

func TestCLIExportImport(t *testing.T) {
	h := newHarness(t)
	_, err := h.run([]string{master, master}, "init")
	require.NoError(t, err)
	exp := filepath.Join(t.TempDir(), "exp.vault")

	_, err = h.run([]string{master}, "export", exp)
	require.NoError(t, err)

	other := &harness{t: t, path: filepath.Join(t.TempDir(), "other.vault")}
	_, err = other.run([]string{"wrong"}, "import", exp)
	assert.True(t, errors.Is(err, vault.ErrAuthFailed))
	_, statErr := os.Stat(other.path)
	assert.True(t, os.IsNotExist(statErr))

	_, err = other.run([]string{master}, "import", exp)
	require.NoError(t, err)
	out, err := other.run([]string{master}, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Vault empty.")
}

func TestCLIMissingFileMessages(t *testing.T) {
	h := newHarness(t)

	_, err := h.run([]string{master}, "list")
	require.True(t, errors.Is(err, vault.ErrNotFound))
	assert.Equal(t, ExitEnvironment, ExitCode(err))
	assert.Contains(t, Message(err), "run 'vault init' first")

	missing := filepath.Join(t.TempDir(), "missing.vault")
	_, err = h.run([]string{master}, "import", missing)
	require.True(t, errors.Is(err, vault.ErrNotFound))
	assert.Equal(t, ExitEnvironment, ExitCode(err))
	assert.Contains(t, Message(err), missing)
	assert.NotContains(t, Message(err), "vault init")
}

func TestDefaultVaultPathCreatedOnFirstWrite(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".go-vault")

	var out bytes.Buffer
	root := NewRootCmd(&scriptedPrompter{}, &out, &out)
	root.SetArgs([]string{"config"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), filepath.Join(dir, "vault.json"))
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	root = NewRootCmd(&scriptedPrompter{answers: []string{master, master}}, &out, &out)
	root.SetArgs([]string{"--kdf-iterations", "1000", "init"})
	require.NoError(t, root.Execute())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	_, err = os.Stat(filepath.Join(dir, "vault.json"))
	assert.NoError(t, err)
}

func TestCLIMinScorePolicy(t *testing.T) {
	h := newHarness(t)
	t.Setenv("VAULT_POLICY_MIN_SCORE", "4")
	_, err := h.run([]string{"abc", "abc"}, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too weak")
}

func TestCLIConfig(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(nil, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "iterations: 1000")
	assert.Contains(t, out, h.path)
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitUser, ExitCode(errors.Wrap(vault.ErrAlreadyExists, "x")))
	assert.Equal(t, ExitData, ExitCode(errors.Wrap(vault.ErrCorrupt, "x")))
	assert.Equal(t, ExitData, ExitCode(vault.ErrMalformedToken))
	assert.Equal(t, ExitEnvironment, ExitCode(errors.Wrap(vault.ErrNotFound, "x")))
	assert.Equal(t, ExitEnvironment, ExitCode(errors.New("disk full")))
	assert.Equal(t, ExitUser, ExitCode(userErrorf("passwords do not match")))
}

func TestGeneratePassword(t *testing.T) {
	a, err := GeneratePassword()
	require.NoError(t, err)
	b, err := GeneratePassword()
	require.NoError(t, err)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
	assert.False(t, strings.ContainsAny(a, "+/="))
}

func TestBrowseModelFilterAndReveal(t *testing.T) {
	entries := vault.EntryMap{
		"bank":  {Username: "me", Secret: []byte("b-secret")},
		"mail":  {Username: "a@b.com", Secret: []byte("m-secret")},
		"mail2": {Username: "c@d.com", Secret: []byte("m2-secret")},
	}
	var m tea.Model = newModel(entries, 0)

	key := func(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

	m, _ = m.Update(key("/"))
	for _, r := range "mail" {
		m, _ = m.Update(key(string(r)))
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"mail", "mail2"}, m.(model).visible())

	m, _ = m.Update(key("j"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	view := m.View()
	assert.Contains(t, view, "c@d.com")
	assert.NotContains(t, view, "m2-secret")

	m, _ = m.Update(key("v"))
	assert.Contains(t, m.View(), "m2-secret")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, stateTable, m.(model).state)
}

func TestBrowseCopyThenQuitClearsClipboard(t *testing.T) {
	entries := vault.EntryMap{"bank": {Username: "me", Secret: []byte("b-secret")}}
	var clip []string
	m := newModel(entries, time.Minute)
	m.writeClipboard = func(s string) error {
		clip = append(clip, s)
		return nil
	}

	var tm tea.Model = m
	tm, cmd := tm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	require.NotNil(t, cmd)
	assert.Equal(t, []string{"b-secret"}, clip)

	// Quit before the clear tick arrives.
	tm, cmd = tm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	final := tm.(model)
	assert.True(t, final.copied)
	require.NoError(t, final.clearOnExit())
	assert.Equal(t, []string{"b-secret", ""}, clip)
}

func TestBrowseClearTickResetsCopied(t *testing.T) {
	entries := vault.EntryMap{"bank": {Username: "me", Secret: []byte("b-secret")}}
	var clip []string
	m := newModel(entries, time.Minute)
	m.writeClipboard = func(s string) error {
		clip = append(clip, s)
		return nil
	}

	var tm tea.Model = m
	tm, _ = tm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	tm, _ = tm.Update(clearMsg{clipboard: true})
	assert.Equal(t, []string{"b-secret", ""}, clip)

	final := tm.(model)
	assert.False(t, final.copied)
	require.NoError(t, final.clearOnExit())
	assert.Equal(t, []string{"b-secret", ""}, clip)
}
