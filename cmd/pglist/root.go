package pglist

import (
	"context"
	"fmt"
	"os"

	"github.com/edgeflare/pglist/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgFile string
	v       = config.New()
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pglist",
	Short: "pglist serves filtered, paginated listings of PostgreSQL tables",
	Long: `pglist exposes the tables described in a resources file as read-only list
endpoints with a filter grammar, per-user visibility and a read-size budget`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(v, cfgFile)
		return err
	},
	Run: func(cmd *cobra.Command, args []string) {
		if versionFlag, _ := cmd.Flags().GetBool("version"); versionFlag {
			fmt.Println(config.Version)
			return
		}
		_ = cmd.Help()
	},
}

func Main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/pglist.yaml)")
	f.StringP("log-level", "L", "info", "log at this level (debug, info, warn, error, none)")
	_ = v.BindPFlag("logLevel", f.Lookup("log-level"))
	rootCmd.Flags().BoolP("version", "v", false, "Print the version number")

	rootCmd.AddCommand(serveCmd)
}

// newLogger returns a production zap logger at level; "none" disables
// logging.
func newLogger(level string) (*zap.Logger, error) {
	if level == "none" {
		return zap.NewNop(), nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
