package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fahmaliyi/sealvault/vault"
)

type viewState int

const (
	stateTable viewState = iota
	stateFilter
	stateShowEntry
)

type clearMsg struct{ clipboard bool }

// model browses one unlocked snapshot of the vault. It never writes.
type model struct {
	entries    vault.EntryMap
	labels     []string
	cursor     int
	state      viewState
	filter     textinput.Model
	revealed   bool
	msg        string
	clearAfter time.Duration

	// copied is set while a secret this model wrote may still be on the
	// clipboard.
	copied         bool
	writeClipboard func(string) error
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	msgStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("57")).Foreground(lipgloss.Color("0"))
	helpStyle     = lipgloss.NewStyle().Faint(true)
)

func (a *app) browseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse entries interactively (read-only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			master, err := a.prompt.Password("Master password: ")
			if err != nil {
				return err
			}
			entries, err := a.engine.Unlock(a.vaultPath(), master)
			if err != nil {
				return a.vaultErr(err)
			}
			defer func() {
				for l := range entries {
					delete(entries, l)
				}
			}()

			p := tea.NewProgram(newModel(entries, a.cfg.GetDuration(keyClipboardClear)), tea.WithOutput(a.out))
			final, err := p.Run()
			if m, ok := final.(model); ok {
				if cerr := m.clearOnExit(); cerr != nil {
					a.warnf("Warning: %v", cerr)
				}
			}
			if err != nil {
				return errors.Wrap(err, "cannot run browser")
			}
			return nil
		},
	}
}

func newModel(entries vault.EntryMap, clearAfter time.Duration) model {
	ti := textinput.New()
	ti.Placeholder = "filter"
	ti.Prompt = "/ "
	return model{
		entries:        entries,
		labels:         entries.Labels(),
		filter:         ti,
		clearAfter:     clearAfter,
		writeClipboard: clipboard.WriteAll,
	}
}

// clearOnExit wipes the clipboard when a copied secret's clear tick has not
// fired yet.
func (m model) clearOnExit() error {
	if !m.copied {
		return nil
	}
	return errors.Wrap(m.writeClipboard(""), "cannot clear clipboard")
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cm, ok := msg.(clearMsg); ok {
		m.msg = ""
		if cm.clipboard && m.copied {
			_ = m.writeClipboard("")
			m.copied = false
		}
		return m, nil
	}

	switch m.state {
	case stateFilter:
		return updateFilter(m, msg)
	case stateShowEntry:
		return updateShowEntry(m, msg)
	default:
		return updateTable(m, msg)
	}
}

func (m model) View() string {
	switch m.state {
	case stateShowEntry:
		return viewShowEntry(m)
	default:
		return viewTable(m)
	}
}

// visible returns the labels matching the current filter.
func (m model) visible() []string {
	q := strings.ToLower(m.filter.Value())
	if q == "" {
		return m.labels
	}
	var out []string
	for _, l := range m.labels {
		if strings.Contains(strings.ToLower(l), q) {
			out = append(out, l)
		}
	}
	return out
}

func (m model) selected() (string, vault.Entry, bool) {
	labels := m.visible()
	if m.cursor < 0 || m.cursor >= len(labels) {
		return "", vault.Entry{}, false
	}
	l := labels[m.cursor]
	return l, m.entries[l], true
}

func (m model) copySelected() (model, tea.Cmd) {
	_, e, ok := m.selected()
	if !ok {
		return m, nil
	}
	if err := m.writeClipboard(string(e.Secret)); err != nil {
		m.msg = "Copy failed: " + err.Error()
		return m, nil
	}
	if m.clearAfter <= 0 {
		m.msg = "Password copied!"
		return m, nil
	}
	m.copied = true
	m.msg = fmt.Sprintf("Password copied! (clears in %s)", m.clearAfter)
	return m, tea.Tick(m.clearAfter, func(time.Time) tea.Msg { return clearMsg{clipboard: true} })
}

// --- Table ---
func updateTable(m model, msg tea.Msg) (model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "/":
		m.state = stateFilter
		m.filter.Focus()
	case "enter":
		if _, _, ok := m.selected(); ok {
			m.state = stateShowEntry
			m.revealed = false
		}
	case "c":
		return m.copySelected()
	}
	return m, nil
}

func updateFilter(m model, msg tea.Msg) (model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter", "esc":
			m.state = stateTable
			m.filter.Blur()
			if key.String() == "esc" {
				m.filter.SetValue("")
			}
			m.cursor = 0
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.cursor = 0
	return m, cmd
}

func viewTable(m model) string {
	s := titleStyle.Render("Vault Entries") + "\n\n"
	if m.state == stateFilter || m.filter.Value() != "" {
		s += m.filter.View() + "\n\n"
	}
	labels := m.visible()
	if len(labels) == 0 {
		s += "No entries.\n"
	}
	for i, l := range labels {
		line := fmt.Sprintf("%-30s  %-30s", l, m.entries[l].Username)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		s += line + "\n"
	}
	if m.msg != "" {
		s += "\n" + msgStyle.Render(m.msg)
	}
	s += "\n" + helpStyle.Render("Commands: j/k=move, /=filter, enter=show, c=copy, q=quit")
	return s
}

// --- Show Entry ---
func updateShowEntry(m model, msg tea.Msg) (model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc":
		m.state = stateTable
		m.revealed = false
	case "v":
		m.revealed = !m.revealed
	case "c":
		return m.copySelected()
	}
	return m, nil
}

func viewShowEntry(m model) string {
	label, e, _ := m.selected()
	secret := "********"
	if m.revealed {
		secret = string(e.Secret)
	}
	s := titleStyle.Render(label) + "\n\n"
	s += fmt.Sprintf("Username: %s\nSecret: %s\nNotes: %s\nUpdated: %s\n",
		e.Username, secret, e.Notes, e.UpdatedAt.Local().Format(time.RFC1123))
	if m.msg != "" {
		s += "\n" + msgStyle.Render(m.msg)
	}
	s += "\n" + helpStyle.Render("v=reveal/hide, c=copy, esc=back")
	return s
}
