// Package mirror uploads a local directory tree to a remote server, one file
// at a time, recreating the directory structure on the way.
package mirror

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"

	"ftpmirror/internal/models"
	"ftpmirror/internal/remote"
	"ftpmirror/pkg/utils"
)

type Options struct {
	Protocol   string
	Endpoint   string
	RemoteRoot string
	Exclude    []string
}

// Mirror runs a single sequential pass. The remote working directory is the
// only shared state and is moved by one goroutine.
type Mirror struct {
	fs   afero.Fs
	dial remote.DialFunc
	out  io.Writer
	opts Options
}

func New(fsys afero.Fs, dial remote.DialFunc, out io.Writer, opts Options) *Mirror {
	return &Mirror{
		fs:   fsys,
		dial: dial,
		out:  out,
		opts: opts,
	}
}

// Sync plans localRoot and uploads it. A bad local root fails before dialing.
func (m *Mirror) Sync(ctx context.Context, localRoot string) (*models.MirrorResult, error) {
	plan, err := BuildPlan(m.fs, localRoot, m.opts.Exclude)
	if err != nil {
		return nil, err
	}
	return m.Upload(ctx, plan)
}

// Upload connects, uploads every entry of plan in order and quits.
//
// Parent directories are created again for every file, and an existing
// directory is only accepted once it can be entered. The session is reset to
// the remote root before each file unless it is already there.
func (m *Mirror) Upload(ctx context.Context, plan *Plan) (result *models.MirrorResult, err error) {
	startTime := time.Now()
	root := m.remoteRoot()
	label := m.label()

	client, err := m.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		quitErr := client.Quit()
		if quitErr == nil {
			return
		}
		if err == nil {
			err = fmt.Errorf("failed to close session: %w", quitErr)
			return
		}
		slog.Warn("Failed to close session", "error", quitErr)
	}()

	if welcome := client.Welcome(); welcome != "" {
		fmt.Fprintln(m.out, welcome)
	}

	if err := client.ChangeDir(root); err != nil {
		return nil, fmt.Errorf("failed to change to remote root %s: %w", root, err)
	}
	atRoot := true

	uploaded := make([]models.UploadItem, 0, len(plan.Entries))
	created := make([]string, 0)
	var totalSize int64

	for _, entry := range plan.Entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("upload interrupted before %s: %w", entry.RelPath, err)
		}

		if !atRoot {
			if err := client.ChangeDir(root); err != nil {
				return nil, fmt.Errorf("failed to change to remote root %s: %w", root, err)
			}
			atRoot = true
		}

		dir := root
		for _, segment := range entry.Dirs {
			dir = path.Join(dir, segment)
			made, err := ensureDir(client, dir)
			if err != nil {
				return nil, err
			}
			atRoot = false
			if made {
				fmt.Fprintf(m.out, "[%s] MKDIR %s\n", label, dir)
				created = append(created, dir)
			}
		}

		if err := m.store(client, entry); err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", entry.RelPath, err)
		}
		fmt.Fprintf(m.out, "[%s] Uploaded %s\n", label, entry.RelPath)

		uploaded = append(uploaded, models.UploadItem{
			LocalPath:  entry.LocalPath,
			RemotePath: path.Join(dir, entry.Name),
			Size:       entry.Size,
		})
		totalSize += entry.Size
	}

	return &models.MirrorResult{
		Protocol:       m.opts.Protocol,
		Endpoint:       m.opts.Endpoint,
		LocalRoot:      plan.LocalRoot,
		RemoteRoot:     root,
		Items:          uploaded,
		CreatedDirs:    created,
		SkippedEntries: plan.Skipped,
		TotalFiles:     len(uploaded),
		TotalSizeBytes: totalSize,
		TotalSizeHuman: utils.FormatBytes(totalSize),
		OperationTime:  utils.FormatTime(startTime),
		UploadDuration: time.Since(startTime).String(),
	}, nil
}

// DryRun describes what Upload would do with plan without connecting.
func (m *Mirror) DryRun(plan *Plan) *models.MirrorResult {
	root := m.remoteRoot()
	items := make([]models.UploadItem, 0, len(plan.Entries))
	dirs := make([]string, 0)
	seen := make(map[string]bool)

	for _, entry := range plan.Entries {
		dir := root
		for _, segment := range entry.Dirs {
			dir = path.Join(dir, segment)
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
		items = append(items, models.UploadItem{
			LocalPath:  entry.LocalPath,
			RemotePath: path.Join(dir, entry.Name),
			Size:       entry.Size,
		})
	}

	totalSize := plan.TotalSize()
	return &models.MirrorResult{
		Protocol:       m.opts.Protocol,
		Endpoint:       m.opts.Endpoint,
		LocalRoot:      plan.LocalRoot,
		RemoteRoot:     root,
		Items:          items,
		CreatedDirs:    dirs,
		SkippedEntries: plan.Skipped,
		TotalFiles:     len(items),
		TotalSizeBytes: totalSize,
		TotalSizeHuman: utils.FormatBytes(totalSize),
		OperationTime:  utils.FormatTime(time.Now()),
		UploadDuration: "0s",
		DryRun:         true,
	}
}

// ensureDir creates dir and enters it. It reports whether dir was created.
// A failed create is only tolerated when the directory can be entered.
func ensureDir(client remote.Client, dir string) (bool, error) {
	mkErr := client.MakeDir(dir)
	if mkErr != nil {
		if remote.IsExist(mkErr) {
			slog.Debug("Directory exists", "dir", dir)
		} else {
			slog.Debug("Create directory failed, trying to enter it", "dir", dir, "error", mkErr)
		}
	}

	if err := client.ChangeDir(dir); err != nil {
		if mkErr != nil {
			return false, fmt.Errorf("failed to create directory %s: %w", dir, mkErr)
		}
		return false, fmt.Errorf("failed to change to directory %s: %w", dir, err)
	}
	return mkErr == nil, nil
}

func (m *Mirror) store(client remote.Client, entry Entry) error {
	file, err := m.fs.Open(entry.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", entry.LocalPath, err)
	}
	defer file.Close()

	return client.Store(entry.Name, file)
}

func (m *Mirror) remoteRoot() string {
	return path.Clean("/" + m.opts.RemoteRoot)
}

func (m *Mirror) label() string {
	if m.opts.Protocol == "" {
		return "FTP"
	}
	return strings.ToUpper(m.opts.Protocol)
}
