package ops

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"taskboard/internal/fsutil"
	"taskboard/internal/task"
)

// maxEntrySize bounds a single restored file.
const maxEntrySize = 64 << 20

var (
	ErrNothingToBackup = errors.New("no files to back up")
	ErrTargetExists    = errors.New("restore target exists")
)

// Backup writes a gzip'd tar of files, stored flat under their base names.
// Paths that do not exist are skipped. It returns the archived names.
func Backup(files []string, archivePath string) ([]string, error) {
	archivePath = filepath.Clean(strings.TrimSpace(archivePath))
	if archivePath == "" || archivePath == "." {
		return nil, fmt.Errorf("archivePath is required")
	}

	var sources []source
	seen := map[string]string{}
	for _, p := range files {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("not a regular file: %s", p)
		}
		name := filepath.Base(p)
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("duplicate archive name %s (%s and %s)", name, prev, p)
		}
		seen[name] = p
		sources = append(sources, source{path: p, info: info})
	}
	if len(sources) == 0 {
		return nil, ErrNothingToBackup
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return nil, err
	}
	return writeTarGz(archivePath, sources)
}

type source struct {
	path string
	info fs.FileInfo
}

// writeTarGz removes the archive again when any write fails.
func writeTarGz(archivePath string, sources []source) (names []string, err error) {
	f, err := os.Create(archivePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(archivePath)
		}
	}()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	names = make([]string, 0, len(sources))
	for _, s := range sources {
		if err := addFile(tw, s.path, s.info); err != nil {
			return nil, fmt.Errorf("archive %s: %w", s.path, err)
		}
		names = append(names, s.info.Name())
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return names, nil
}

func addFile(tw *tar.Writer, path string, info fs.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = info.Name()
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(tw, src)
	return err
}

type entry struct {
	name string
	mode fs.FileMode
	data []byte
}

// Restore extracts the regular files of archivePath into targetDir. Every
// .json entry must be a valid task collection. Nothing is written unless all
// entries pass; existing files are only replaced when overwrite is set.
// It returns the restored paths.
func Restore(archivePath, targetDir string, overwrite bool) ([]string, error) {
	if strings.TrimSpace(targetDir) == "" {
		return nil, fmt.Errorf("targetDir is required")
	}
	targetDir = filepath.Clean(strings.TrimSpace(targetDir))
	return restore(archivePath, overwrite, func(name string) (string, error) {
		return filepath.Join(targetDir, name), nil
	})
}

// RestorePaths is Restore with an explicit destination per archived base
// name, so files that were backed up from different directories go back
// where they came from. An entry with no destination fails the restore.
func RestorePaths(archivePath string, paths map[string]string, overwrite bool) ([]string, error) {
	return restore(archivePath, overwrite, func(name string) (string, error) {
		p := strings.TrimSpace(paths[name])
		if p == "" {
			return "", fmt.Errorf("no restore destination for archive entry %s", name)
		}
		return filepath.Clean(p), nil
	})
}

func restore(archivePath string, overwrite bool, dest func(name string) (string, error)) ([]string, error) {
	archivePath = filepath.Clean(strings.TrimSpace(archivePath))
	if archivePath == "" || archivePath == "." {
		return nil, fmt.Errorf("archivePath is required")
	}

	entries, err := readArchive(archivePath)
	if err != nil {
		return nil, err
	}

	outs := make([]string, len(entries))
	for i, e := range entries {
		if strings.EqualFold(filepath.Ext(e.name), ".json") {
			if err := task.ValidateDocument(e.data); err != nil {
				return nil, fmt.Errorf("invalid task collection %s: %w", e.name, err)
			}
		}
		out, err := dest(e.name)
		if err != nil {
			return nil, err
		}
		outs[i] = out
		if overwrite {
			continue
		}
		if _, err := os.Stat(out); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrTargetExists, out)
		}
	}

	restored := make([]string, 0, len(entries))
	for i, e := range entries {
		if err := os.MkdirAll(filepath.Dir(outs[i]), 0o755); err != nil {
			return restored, err
		}
		if err := fsutil.WriteFileAtomic(outs[i], e.data, e.mode); err != nil {
			return restored, err
		}
		restored = append(restored, outs[i])
	}
	return restored, nil
}

func readArchive(archivePath string) ([]entry, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	var entries []entry
	seen := map[string]bool{}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			// Ignore unsupported entry types.
			continue
		}

		name, err := sanitizeArchiveName(hdr.Name)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate archive entry: %s", name)
		}
		seen[name] = true
		if hdr.Size > maxEntrySize {
			return nil, fmt.Errorf("archive entry too large: %s", name)
		}

		data, err := io.ReadAll(io.LimitReader(tr, maxEntrySize))
		if err != nil {
			return nil, err
		}
		mode := fs.FileMode(hdr.Mode).Perm()
		if mode == 0 {
			mode = 0o644
		}
		entries = append(entries, entry{name: name, mode: mode, data: data})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("archive has no files: %s", archivePath)
	}
	return entries, nil
}

// sanitizeArchiveName accepts only plain file names.
func sanitizeArchiveName(name string) (string, error) {
	name = filepath.Clean(strings.TrimSpace(name))
	if name == "." || name == "" {
		return "", fmt.Errorf("invalid archive entry path")
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("invalid absolute archive entry path: %s", name)
	}
	if strings.HasPrefix(name, ".."+string(filepath.Separator)) || strings.HasPrefix(name, "../") || name == ".." {
		return "", fmt.Errorf("invalid archive entry path traversal: %s", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("nested archive entry path: %s", name)
	}
	return name, nil
}

// Digest hashes the names and contents of files, sorted by base name.
// Missing files are skipped.
func Digest(files []string) (string, error) {
	byName := map[string]string{}
	for _, p := range files {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		byName[filepath.Base(p)] = p
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, n := range names {
		_, _ = io.WriteString(h, n)
		_, _ = io.WriteString(h, "\n")
		b, err := os.ReadFile(byName[n])
		if err != nil {
			return "", err
		}
		_, _ = h.Write(b)
		_, _ = io.WriteString(h, "\n")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
