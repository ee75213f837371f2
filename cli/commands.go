package cli

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/atotto/clipboard"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fahmaliyi/sealvault/vault"
)

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			master, err := a.newMasterPassword("Choose a master password: ")
			if err != nil {
				return err
			}
			if err := a.engine.Init(a.vaultPath(), master); err != nil {
				return err
			}
			a.successf("Initialized new vault at %s", a.vaultPath())
			return nil
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	var copySecret bool
	cmd := &cobra.Command{
		Use:   "get <label>",
		Short: "Retrieve an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			master, err := a.prompt.Password("Master password: ")
			if err != nil {
				return err
			}
			e, err := a.engine.Get(a.vaultPath(), master, args[0])
			if err != nil {
				return a.vaultErr(err)
			}

			fmt.Fprintln(a.out, "Entry:", args[0])
			fmt.Fprintln(a.out, "  Username:", e.Username)
			if copySecret {
				fmt.Fprintln(a.out, "  Password: ********")
			} else {
				fmt.Fprintln(a.out, "  Password:", string(e.Secret))
			}
			if e.Notes != "" {
				fmt.Fprintln(a.out, "  Notes:", e.Notes)
			}
			if copySecret {
				return a.copyToClipboard(string(e.Secret))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&copySecret, "copy", "c", false, "copy the password to the clipboard instead of printing it")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List entry labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			master, err := a.prompt.Password("Master password: ")
			if err != nil {
				return err
			}
			labels, err := a.engine.List(a.vaultPath(), master)
			if err != nil {
				return a.vaultErr(err)
			}
			if len(labels) == 0 {
				fmt.Fprintln(a.out, "Vault empty.")
				return nil
			}
			fmt.Fprintln(a.out, "Entries:")
			for _, l := range labels {
				fmt.Fprintln(a.out, " -", l)
			}
			return nil
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <label>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label := args[0]
			master, err := a.prompt.Password("Master password: ")
			if err != nil {
				return err
			}
			ok, err := a.confirmed(fmt.Sprintf("Really delete '%s'?", label), yes)
			if err != nil || !ok {
				vault.Zero(master)
				if err == nil {
					fmt.Fprintln(a.out, "Delete cancelled.")
				}
				return err
			}
			if err := a.engine.Delete(a.vaultPath(), master, label); err != nil {
				return a.vaultErr(err)
			}
			a.successf("Deleted entry: %s", label)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func (a *app) changeMasterCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "change-master",
		Short: "Change the master password and re-encrypt the vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			old, err := a.prompt.Password("Current master password: ")
			if err != nil {
				return err
			}
			newMaster, err := a.newMasterPassword("New master password: ")
			if err != nil {
				vault.Zero(old)
				return err
			}
			ok, err := a.confirmed("Re-encrypt the vault under the new master password?", yes)
			if err != nil || !ok {
				vault.Zero(old)
				vault.Zero(newMaster)
				if err == nil {
					fmt.Fprintln(a.out, "Master password change cancelled.")
				}
				return err
			}
			if err := a.engine.ChangeMaster(a.vaultPath(), old, newMaster); err != nil {
				return a.vaultErr(err)
			}
			a.successf("Master password changed and vault re-encrypted.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <out>",
		Short: "Export the encrypted vault to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			master, err := a.prompt.Password("Master password: ")
			if err != nil {
				return err
			}
			if err := a.engine.ExportEncrypted(a.vaultPath(), master, args[0]); err != nil {
				return a.vaultErr(err)
			}
			a.successf("Exported encrypted vault to %s", args[0])
			return nil
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <in>",
		Short: "Replace the vault with an exported encrypted vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			master, err := a.prompt.Password("Master password for imported vault: ")
			if err != nil {
				return err
			}
			if err := a.engine.ImportEncrypted(a.vaultPath(), master, args[0]); err != nil {
				return err
			}
			a.successf("Imported vault saved to %s", a.vaultPath())
			return nil
		},
	}
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := map[string]interface{}{
				"vault":     map[string]interface{}{"path": a.vaultPath()},
				"kdf":       map[string]interface{}{"iterations": a.cfg.GetInt(keyIterations)},
				"clipboard": map[string]interface{}{"clear_after": a.cfg.GetDuration(keyClipboardClear).String()},
				"policy":    map[string]interface{}{"min_score": a.cfg.GetInt(keyMinScore)},
				"log":       map[string]interface{}{"level": a.cfg.GetString(keyLogLevel)},
			}
			out, err := yaml.Marshal(settings)
			if err != nil {
				return errors.Wrap(err, "cannot encode config")
			}
			_, err = a.out.Write(out)
			return err
		},
	}
}

// copyToClipboard places secret on the clipboard and clears it after the
// configured delay or on interrupt, whichever comes first.
func (a *app) copyToClipboard(secret string) error {
	if clipboard.Unsupported {
		return userErrorf("clipboard is not available on this system")
	}
	if err := clipboard.WriteAll(secret); err != nil {
		return errors.Wrap(err, "cannot write clipboard")
	}
	delay := a.cfg.GetDuration(keyClipboardClear)
	if delay <= 0 {
		fmt.Fprintln(a.out, "Password copied to clipboard.")
		return nil
	}
	fmt.Fprintf(a.out, "Password copied to clipboard. Clearing in %s...\n", delay)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)
	select {
	case <-time.After(delay):
	case <-sig:
	}
	return errors.Wrap(clipboard.WriteAll(""), "cannot clear clipboard")
}
