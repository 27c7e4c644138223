package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ftpmirror/config"
	"ftpmirror/internal/mirror"
	"ftpmirror/pkg/utils"
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Upload a local directory tree to the remote server",
	Long: `Upload every regular file below the local root to the same relative path
below the remote root.

Files are uploaded one at a time in sorted path order. Missing remote
directories are created before the files inside them. Files that already
exist on the server are overwritten.

The local root must be an existing directory. Otherwise the command fails
before connecting.`,
	Example: `  # Mirror the configured LOCAL_ROOT (dist-site by default) to the server root
  ftpmirror mirror

  # Mirror a build directory into public_html
  ftpmirror mirror --local build --remote /public_html

  # Skip source maps and macOS metadata
  ftpmirror mirror --exclude '*.map' --exclude .DS_Store

  # Show what would be uploaded without connecting
  ftpmirror mirror --dry-run

  # Publish to an S3 bucket and print a JSON report
  ftpmirror mirror --protocol s3 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMirror(cmd)
	},
}

func runMirror(cmd *cobra.Command) error {
	c := effectiveConfig(cmd)
	if localRoot, _ := cmd.Flags().GetString("local"); localRoot != "" {
		c.LocalRoot = localRoot
	}
	if exclude, _ := cmd.Flags().GetStringSlice("exclude"); len(exclude) > 0 {
		c.Exclude = append(c.Exclude, exclude...)
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeout, _ := cmd.Flags().GetInt("timeout")

	progress := cmd.OutOrStdout()
	if jsonOutput {
		progress = cmd.ErrOrStderr()
	}

	m := mirror.New(localFs, dialRemote(c), progress, mirror.Options{
		Protocol:   c.Protocol,
		Endpoint:   c.Endpoint(),
		RemoteRoot: c.RemoteRoot,
		Exclude:    c.Exclude,
	})

	if isVerbose(cmd) {
		fmt.Fprintf(progress, "Starting mirror operation...\n")
		fmt.Fprintf(progress, "  Local root: %s\n", c.LocalRoot)
		fmt.Fprintf(progress, "  Remote: %s %s%s\n", c.Protocol, c.Endpoint(), c.RemoteRoot)
		if len(c.Exclude) > 0 {
			fmt.Fprintf(progress, "  Exclude: %v\n", c.Exclude)
		}
		if dryRun {
			fmt.Fprintln(progress, "  DRY RUN MODE: No files will actually be uploaded")
		}
	}

	plan, err := mirror.BuildPlan(localFs, c.LocalRoot, c.Exclude)
	if err != nil {
		return reportError(err, "mirror")
	}

	if dryRun {
		if err := utils.WriteJSON(cmd.OutOrStdout(), m.DryRun(plan)); err != nil {
			return reportError(err, "mirror")
		}
		return nil
	}

	if err := prepareLogin(cmd, c); err != nil {
		return reportError(err, "mirror")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeout)*time.Second)
	defer cancel()

	result, err := m.Upload(ctx, plan)
	if err != nil {
		return reportError(err, "mirror")
	}

	if jsonOutput {
		if err := utils.WriteJSON(cmd.OutOrStdout(), result); err != nil {
			return reportError(err, "mirror")
		}
		return nil
	}

	fmt.Fprintf(progress, "Uploaded %d files (%s) in %s\n", result.TotalFiles, result.TotalSizeHuman, result.UploadDuration)
	return nil
}

// prepareLogin validates c and asks for a missing password.
func prepareLogin(cmd *cobra.Command, c *config.Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.NeedsPassword() {
		if err := c.PromptPassword(os.Stdin, cmd.ErrOrStderr()); err != nil {
			return err
		}
	}
	return nil
}

func reportError(err error, command string) error {
	utils.PrintError(err, command)
	return err
}

func init() {
	mirrorCmd.Flags().StringP("local", "l", "", "Local directory to mirror (default from LOCAL_ROOT)")
	mirrorCmd.Flags().StringSliceP("exclude", "e", nil, "Glob pattern of paths to skip (repeatable)")
	mirrorCmd.Flags().Bool("dry-run", false, "Show what would be uploaded without connecting")
	mirrorCmd.Flags().Bool("json", false, "Print the result as JSON and progress to stderr")
	mirrorCmd.Flags().Int("timeout", 3600, "Timeout in seconds for the operation (default: 1 hour)")
}
