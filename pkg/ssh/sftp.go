package ssh

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"

	"github.com/monshunter/ohmyremote/pkg/log"
)

// Fetch copies the files and directories matching globs on the server into
// destDir over SFTP. Directories are copied recursively. Relative globs are
// resolved against the login directory.
func (c *Client) Fetch(ctx context.Context, destDir string, globs []string) error {
	if c.client == nil {
		if err := c.Connect(ctx); err != nil {
			return err
		}
		defer c.Close()
	}

	sc, err := sftp.NewClient(c.client)
	if err != nil {
		return fmt.Errorf("sftp client creation failed: %w", err)
	}
	defer sc.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create local directory %s: %w", destDir, err)
	}

	for _, glob := range globs {
		matches, err := sc.Glob(glob)
		if err != nil {
			return fmt.Errorf("invalid remote pattern %q: %w", glob, err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("%s:%s: no such file or directory", c.Host, glob)
		}
		for _, match := range matches {
			if err := fetchTree(ctx, sc, match, destDir); err != nil {
				return err
			}
		}
	}
	return nil
}

// fetchTree copies root into destDir, keeping root's base name
func fetchTree(ctx context.Context, sc *sftp.Client, root, destDir string) error {
	root = path.Clean(root)
	walker := sc.Walk(root)
	for walker.Step() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := walker.Err(); err != nil {
			return fmt.Errorf("failed to read remote %s: %w", walker.Path(), err)
		}
		rel := path.Join(path.Base(root), strings.TrimPrefix(walker.Path(), root))
		local := filepath.Join(destDir, filepath.FromSlash(rel))

		info := walker.Stat()
		switch {
		case info.IsDir():
			if err := os.MkdirAll(local, 0755); err != nil {
				return fmt.Errorf("failed to create local directory %s: %w", local, err)
			}
		case info.Mode().IsRegular():
			if err := download(sc, walker.Path(), local, info.Mode().Perm()); err != nil {
				return err
			}
		default:
			log.Debugf("Skipping %s: not a regular file", walker.Path())
		}
	}
	return nil
}

func download(sc *sftp.Client, remotePath, localPath string, perm os.FileMode) error {
	src, err := sc.Open(remotePath)
	if err != nil {
		return fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm|0200)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(localPath)
		return fmt.Errorf("failed to copy %s: %w", remotePath, err)
	}
	log.Debugf("Downloaded %s (%s)", remotePath, log.FormatSize(n))
	return nil
}
