package jujuci

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/monshunter/ohmyremote/pkg/envar"
	"github.com/monshunter/ohmyremote/pkg/log"
)

// GetOptions controls GetArtifacts
type GetOptions struct {
	// Archive empties the download directory first. The directory must
	// already exist.
	Archive bool
	DryRun  bool
}

// GetArtifacts downloads the artifacts of a build matching glob into dir
// and returns them. With DryRun nothing is changed on disk.
func (c *Client) GetArtifacts(ctx context.Context, job, build, glob, dir string, opts GetOptions) ([]Artifact, error) {
	fullPath := expandUser(dir)
	if opts.Archive {
		log.Debugf("Cleaning %s", fullPath)
		info, err := os.Stat(fullPath)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%s does not exist", fullPath)
		}
		if !opts.DryRun {
			if err := os.RemoveAll(fullPath); err != nil {
				return nil, fmt.Errorf("failed to clean %s: %w", fullPath, err)
			}
			if err := os.MkdirAll(fullPath, 0755); err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", fullPath, err)
			}
		}
	}

	artifacts, err := c.ListArtifacts(ctx, job, build, glob)
	if err != nil {
		return nil, err
	}

	for _, artifact := range artifacts {
		if !filepath.IsLocal(artifact.FileName) {
			return nil, fmt.Errorf("artifact name %q escapes %s", artifact.FileName, fullPath)
		}
	}

	var bar *log.ProgressBar
	if !opts.DryRun && len(artifacts) > 1 {
		bar = log.NewProgressBar("Downloading artifacts", len(artifacts))
	}
	for _, artifact := range artifacts {
		localPath, err := filepath.Abs(filepath.Join(fullPath, artifact.FileName))
		if err != nil {
			return nil, err
		}
		log.Debugf("Retrieving %s => %s", artifact.Location, localPath)
		if opts.DryRun {
			continue
		}
		if _, err := c.DownloadFile(ctx, artifact.Location, localPath); err != nil {
			return nil, err
		}
		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.Complete()
	}
	return artifacts, nil
}

// SetupWorkspace empties the workspace and creates an artifacts directory
// holding an empty file, so the CI server always finds something to
// archive.
func SetupWorkspace(workspace string, dryRun bool) error {
	entries, err := os.ReadDir(workspace)
	if err != nil {
		return fmt.Errorf("failed to read workspace %s: %w", workspace, err)
	}
	for _, entry := range entries {
		log.Infof("Removing %s", entry.Name())
		if dryRun {
			continue
		}
		if err := os.RemoveAll(filepath.Join(workspace, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
	}

	log.Info("Creating artifacts dir.")
	if dryRun {
		return nil
	}
	artifactsPath := filepath.Join(workspace, "artifacts")
	if err := os.Mkdir(artifactsPath, 0755); err != nil {
		return fmt.Errorf("failed to create artifacts dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(artifactsPath, "empty"), os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create empty artifact: %w", err)
	}
	return f.Close()
}

func expandUser(path string) string {
	if path == "~" {
		return envar.UserHome()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(envar.UserHome(), path[2:])
	}
	return path
}
