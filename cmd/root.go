// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rehydrate/internal/config"
	"github.com/xkilldash9x/rehydrate/internal/observability"
)

// viperKey annotates a flag with the configuration key it overrides.
const viperKey = "rehydrate_viper_key"

// app carries the state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

// NewRootCommand builds a fresh command tree with its own configuration.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "rehydrate",
		Short: "Rehydrate checks that server-rendered pages hydrate and behave in a browser.",
		// Version is set at build time. See cmd/version.go.
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetVersionTemplate("rehydrate version {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./rehydrate.yaml)")
	pf.String("log-level", "", "log level: debug, info, warn, error (overrides config/env)")
	bindFlag(pf, "log-level", "logger.level")

	root.AddCommand(newRunCmd(a), newListCmd(a), newVersionCmd())
	return root
}

// Execute runs the command line and reports a non-cancellation error on stderr.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.Sync()
	return err
}

func bindFlag(fs *pflag.FlagSet, name, key string) {
	if err := fs.SetAnnotation(name, viperKey, []string{key}); err != nil {
		panic(err)
	}
}

// setup loads configuration with precedence flag > env > file > default and
// initializes the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.readConfig(); err != nil {
		return err
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys := f.Annotations[viperKey]; len(keys) > 0 && bindErr == nil {
			bindErr = a.v.BindPFlag(keys[0], f)
		}
	})
	if bindErr != nil {
		return fmt.Errorf("failed to bind flags: %w", bindErr)
	}

	cfg, err := config.NewConfigFromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = observability.InitializeLogger(cfg.LoggerCfg)
	a.logger.Debug("Configuration loaded.",
		zap.String("version", Version),
		zap.String("config_file", a.v.ConfigFileUsed()),
	)
	return nil
}

func (a *app) readConfig() error {
	config.SetDefaults(a.v)
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("rehydrate")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix("REHYDRATE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}
