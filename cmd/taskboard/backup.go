package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"taskboard/internal/config"
	"taskboard/internal/ops"
)

func storeFiles(cfg *config.Config) []string {
	return []string{cfg.Store.Path, cfg.Store.TemplatePath}
}

// storeDestinations maps each archived base name back to its configured path.
func storeDestinations(cfg *config.Config) map[string]string {
	out := map[string]string{}
	for _, p := range storeFiles(cfg) {
		if p != "" {
			out[filepath.Base(p)] = p
		}
	}
	return out
}

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the task collection and template",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				ts := time.Now().UTC().Format("20060102T150405Z")
				out = filepath.Join("backups", "taskboard-"+ts+".tar.gz")
			}
			if _, err := ops.Backup(storeFiles(cfg), out); err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().String("out", "", "output archive path (.tar.gz)")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the task collection from a backup archive",
		Long: `Restore files from a backup archive to the configured store and template
paths, or into --target-dir when given.

Every JSON file in the archive must be a valid task collection. Existing files
are left alone unless --force is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			archive, _ := cmd.Flags().GetString("archive")
			target, _ := cmd.Flags().GetString("target-dir")
			force, _ := cmd.Flags().GetBool("force")
			var restored []string
			if target == "" {
				restored, err = ops.RestorePaths(archive, storeDestinations(cfg), force)
			} else {
				restored, err = ops.Restore(archive, target, force)
			}
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			for _, p := range restored {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().String("archive", "", "input backup archive (.tar.gz)")
	cmd.Flags().String("target-dir", "", "restore target directory (default: configured store and template paths)")
	cmd.Flags().Bool("force", false, "overwrite existing files")
	_ = cmd.MarkFlagRequired("archive")
	return cmd
}

func newDrillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drill",
		Short: "Back up, restore to a scratch dir and compare digests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			workDir, _ := cmd.Flags().GetString("work-dir")
			if err := os.MkdirAll(workDir, 0o755); err != nil {
				return err
			}
			ts := time.Now().UTC().Format("20060102T150405Z")
			archive := filepath.Join(workDir, "taskboard-drill-"+ts+".tar.gz")
			restoreDir := filepath.Join(workDir, "taskboard-drill-restore-"+ts)

			files := storeFiles(cfg)
			if _, err := ops.Backup(files, archive); err != nil {
				return err
			}
			restored, err := ops.Restore(archive, restoreDir, false)
			if err != nil {
				return err
			}

			srcDigest, err := ops.Digest(files)
			if err != nil {
				return err
			}
			restoreDigest, err := ops.Digest(restored)
			if err != nil {
				return err
			}
			if srcDigest != restoreDigest {
				return fmt.Errorf("digest mismatch after restore: src=%s restored=%s", srcDigest, restoreDigest)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "backup:", archive)
			fmt.Fprintln(out, "restored:", restoreDir)
			fmt.Fprintln(out, "digest:", srcDigest)
			return nil
		},
	}
	cmd.Flags().String("work-dir", os.TempDir(), "temporary workspace for drill artifacts")
	return cmd
}
