package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fahmaliyi/sealvault/vault"
)

const (
	keyVaultPath      = "vault.path"
	keyIterations     = "kdf.iterations"
	keyClipboardClear = "clipboard.clear_after"
	keyMinScore       = "policy.min_score"
	keyLogLevel       = "log.level"
)

// app carries everything a command needs for one process run.
type app struct {
	cfg     *viper.Viper
	cfgFile string
	prompt  Prompter
	out     io.Writer
	errOut  io.Writer
	log     zerolog.Logger
	engine  *vault.Engine
}

// NewRootCmd builds the vault command tree reading secrets from p.
func NewRootCmd(p Prompter, out, errOut io.Writer) *cobra.Command {
	a := &app{cfg: viper.New(), prompt: p, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "vault",
		Short: "A local, file-based encrypted password vault",
		Long: `vault keeps credentials in a single encrypted file.
The file holds a random salt and an XChaCha20-Poly1305 sealed token; the key is
derived from the master password with PBKDF2-HMAC-SHA256 on every command.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.vault.yaml)")
	flags.StringP("vault", "f", "", "path to vault file (default is $HOME/.go-vault/vault.json)")
	flags.Int("kdf-iterations", vault.DefaultIterations, "PBKDF2 iterations; must match the value the vault was created with")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")

	a.bindFlag(root, keyVaultPath, "vault")
	a.bindFlag(root, keyIterations, "kdf-iterations")
	a.bindFlag(root, keyLogLevel, "log-level")

	root.AddCommand(
		a.initCmd(),
		a.addCmd(),
		a.getCmd(),
		a.listCmd(),
		a.deleteCmd(),
		a.changeMasterCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.browseCmd(),
		a.configCmd(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	root := NewRootCmd(NewTermPrompter(os.Stdin, os.Stderr), os.Stdout, os.Stderr)
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+Message(err)))
	}
	return ExitCode(err)
}

func (a *app) bindFlag(root *cobra.Command, key, flag string) {
	if err := a.cfg.BindPFlag(key, root.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", flag, err))
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	log, err := newLogger(a.errOut, a.cfg.GetString(keyLogLevel))
	if err != nil {
		return err
	}
	a.log = log

	if a.cfg.GetString(keyVaultPath) == "" {
		path, err := DefaultVaultPath()
		if err != nil {
			return errors.Wrap(err, "cannot determine vault path")
		}
		a.cfg.Set(keyVaultPath, path)
	}

	a.engine = vault.New(
		vault.WithIterations(a.cfg.GetInt(keyIterations)),
		vault.WithLogger(a.log),
	)
	a.log.Debug().Str("command", cmd.Name()).Str("vault", a.vaultPath()).Msg("starting")
	return nil
}

func (a *app) loadConfig() error {
	v := a.cfg
	v.SetDefault(keyIterations, vault.DefaultIterations)
	v.SetDefault(keyClipboardClear, 30*time.Second)
	v.SetDefault(keyMinScore, 0)
	v.SetDefault(keyLogLevel, "warn")

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigType("yaml")
		v.SetConfigName(".vault")
	}

	v.SetEnvPrefix("VAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "cannot read config file")
		}
	}
	return nil
}

func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), errors.Wrapf(err, "invalid log level %q", level)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).With().Timestamp().Logger(), nil
}

func (a *app) vaultPath() string {
	return a.cfg.GetString(keyVaultPath)
}
