package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fahmaliyi/sealvault/vault"
)

func (a *app) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <label>",
		Short: "Add or update an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAdd(args[0])
		},
	}
}

func (a *app) runAdd(label string) error {
	master, err := a.prompt.Password("Master password: ")
	if err != nil {
		return err
	}
	defer vault.Zero(master)

	username, err := a.prompt.Line("Username: ")
	if err != nil {
		return err
	}
	username = strings.TrimSpace(username)

	secret, err := a.prompt.Password("Password (leave empty to generate random): ")
	if err != nil {
		return err
	}
	defer func() { vault.Zero(secret) }()

	generated := false
	if len(secret) == 0 {
		gen, err := GeneratePassword()
		if err != nil {
			return err
		}
		secret, generated = []byte(gen), true
	}

	notes, err := a.prompt.Line("Notes (optional): ")
	if err != nil {
		return err
	}

	replaced, err := a.engine.Add(a.vaultPath(), master, label, vault.Entry{
		Username: username,
		Secret:   secret,
		Notes:    strings.TrimSpace(notes),
	})
	if err != nil {
		return a.vaultErr(err)
	}

	if replaced {
		a.warnf("Warning: '%s' already existed and was overwritten.", label)
	}
	if generated {
		fmt.Fprintln(a.out, "Generated password:", string(secret))
	}
	a.successf("Saved entry: %s", label)
	return nil
}
