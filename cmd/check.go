package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/spf13/cobra"

	"ftpmirror/internal/models"
	"ftpmirror/pkg/utils"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify connection, login and the remote root",
	Long: `Connect and log in to the configured server, print its welcome message
and current directory, and check that the remote root can be entered.
Nothing is created or uploaded.`,
	Example: `  # Check the configured server
  ftpmirror check

  # Check an SFTP target as another user
  ftpmirror check --protocol sftp --host files.example.com --user deploy`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd)
	},
}

func runCheck(cmd *cobra.Command) error {
	c := effectiveConfig(cmd)
	if err := prepareLogin(cmd, c); err != nil {
		return reportError(err, "check")
	}

	timeout, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeout)*time.Second)
	defer cancel()

	if isVerbose(cmd) {
		cmd.Printf("Checking %s %s\n", c.Protocol, c.Endpoint())
	}

	client, err := dialRemote(c)(ctx)
	if err != nil {
		return reportError(fmt.Errorf("failed to connect: %w", err), "check")
	}
	defer func() {
		if err := client.Quit(); err != nil {
			slog.Warn("Failed to close session", "error", err)
		}
	}()

	currentDir, err := client.CurrentDir()
	if err != nil {
		return reportError(fmt.Errorf("failed to get current directory: %w", err), "check")
	}

	remoteRoot := path.Clean("/" + c.RemoteRoot)
	rootErr := client.ChangeDir(remoteRoot)
	if rootErr != nil {
		slog.Debug("Remote root not accessible", "root", remoteRoot, "error", rootErr)
	}

	info := &models.RemoteInfo{
		Protocol:   c.Protocol,
		Endpoint:   c.Endpoint(),
		User:       c.User,
		Welcome:    client.Welcome(),
		CurrentDir: currentDir,
		RemoteRoot: remoteRoot,
		RootExists: rootErr == nil,
		CheckTime:  utils.FormatTime(time.Now()),
	}

	if err := utils.WriteJSON(cmd.OutOrStdout(), info); err != nil {
		return reportError(err, "check")
	}

	if isVerbose(cmd) {
		cmd.Printf("Check completed successfully\n")
	}
	return nil
}

func init() {
	checkCmd.Flags().Int("timeout", 60, "Timeout in seconds for the operation")
}
