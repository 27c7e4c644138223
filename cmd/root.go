package cmd

import (
	"log/slog"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"ftpmirror/config"
	"ftpmirror/internal/remote"
)

var (
	cfg *config.Config

	// Swapped out in tests.
	localFs    = afero.NewOsFs()
	dialRemote = remote.NewDialFunc
)

var rootCmd = &cobra.Command{
	Use:   "ftpmirror",
	Short: "Mirror a local directory tree to an FTP, SFTP or S3 server",
	Long: `ftpmirror uploads every file below a local directory to a remote server,
recreating the directory structure on the way. Files are uploaded one at a
time in sorted path order and existing remote files are overwritten.

Configuration is loaded from .env file or environment variables`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if isVerbose(cmd) {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	},
}

func Execute(config *config.Config) error {
	cfg = config
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(mirrorCmd)
	rootCmd.AddCommand(checkCmd)

	rootCmd.PersistentFlags().StringP("protocol", "p", "", "Override protocol from config (ftp, sftp or s3)")
	rootCmd.PersistentFlags().String("host", "", "Override server host[:port] from config")
	rootCmd.PersistentFlags().String("user", "", "Override login user from config")
	rootCmd.PersistentFlags().StringP("remote", "r", "", "Override remote root directory from config")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
}

// effectiveConfig returns a copy of the loaded configuration with command
// line overrides applied.
func effectiveConfig(cmd *cobra.Command) *config.Config {
	c := *cfg
	c.Exclude = append([]string(nil), cfg.Exclude...)

	if protocol, _ := cmd.Flags().GetString("protocol"); protocol != "" {
		c.Protocol = strings.ToLower(protocol)
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		c.Host = host
	}
	if user, _ := cmd.Flags().GetString("user"); user != "" {
		c.User = user
	}
	if remoteRoot, _ := cmd.Flags().GetString("remote"); remoteRoot != "" {
		c.RemoteRoot = remoteRoot
	}
	return &c
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return verbose
}
