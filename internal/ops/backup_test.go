package ops

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

const collection = `{
  "tasks": [
    {"id": "t1", "title": "Laundry", "status": "pending"}
  ]
}
`

func writeFiles(t *testing.T, dir string, files map[string]string) []string {
	t.Helper()
	var paths []string
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir parent %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func writeArchive(t *testing.T, entries map[string]string) string {
	t.Helper()
	archive := filepath.Join(t.TempDir(), "handmade.tar.gz")
	f, err := os.Create(archive)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, body := range entries {
		if err := tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(body)),
		}); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatalf("write body: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return archive
}

func readDir(t *testing.T, dir string) map[string]string {
	t.Helper()
	got := map[string]string{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		got[e.Name()] = string(b)
	}
	return got
}

func TestBackupRestore_RoundTrip(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"taskboard.json":          collection,
		"taskboard.template.json": `{"tasks": []}`,
	}
	paths := writeFiles(t, src, files)

	archive := filepath.Join(t.TempDir(), "backups", "backup.tar.gz")
	names, err := Backup(append(paths, filepath.Join(src, "missing.json")), archive)
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	sort.Strings(names)
	if !reflect.DeepEqual(names, []string{"taskboard.json", "taskboard.template.json"}) {
		t.Fatalf("unexpected archived names %v", names)
	}

	restoreDir := filepath.Join(t.TempDir(), "restore")
	restored, err := Restore(archive, restoreDir, false)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if len(restored) != 2 {
		t.Fatalf("expected 2 restored files, got %v", restored)
	}
	if got := readDir(t, restoreDir); !reflect.DeepEqual(files, got) {
		t.Fatalf("restored files mismatch:\nwant=%v\ngot=%v", files, got)
	}

	srcDigest, err := Digest(paths)
	if err != nil {
		t.Fatalf("digest src: %v", err)
	}
	dstDigest, err := Digest(restored)
	if err != nil {
		t.Fatalf("digest restored: %v", err)
	}
	if srcDigest != dstDigest {
		t.Fatalf("digest mismatch: %s != %s", srcDigest, dstDigest)
	}
}

func TestBackup_NothingToBackup(t *testing.T) {
	_, err := Backup([]string{filepath.Join(t.TempDir(), "nope.json")}, filepath.Join(t.TempDir(), "b.tar.gz"))
	if !errors.Is(err, ErrNothingToBackup) {
		t.Fatalf("expected ErrNothingToBackup, got %v", err)
	}
}

func TestBackup_RejectsDuplicateNames(t *testing.T) {
	a := writeFiles(t, t.TempDir(), map[string]string{"taskboard.json": collection})
	b := writeFiles(t, t.TempDir(), map[string]string{"taskboard.json": collection})

	if _, err := Backup(append(a, b...), filepath.Join(t.TempDir(), "b.tar.gz")); err == nil {
		t.Fatalf("expected duplicate name error")
	}
}

func TestRestore_RefusesOverwriteWithoutFlag(t *testing.T) {
	archive := writeArchive(t, map[string]string{"taskboard.json": collection})
	target := t.TempDir()
	existing := `{"tasks": []}`
	writeFiles(t, target, map[string]string{"taskboard.json": existing})

	_, err := Restore(archive, target, false)
	if !errors.Is(err, ErrTargetExists) {
		t.Fatalf("expected ErrTargetExists, got %v", err)
	}
	if got := readDir(t, target)["taskboard.json"]; got != existing {
		t.Fatalf("existing file was modified: %s", got)
	}

	if _, err := Restore(archive, target, true); err != nil {
		t.Fatalf("restore with overwrite: %v", err)
	}
	if got := readDir(t, target)["taskboard.json"]; got != collection {
		t.Fatalf("file not replaced: %s", got)
	}
}

func TestRestore_ValidatesCollections(t *testing.T) {
	tests := map[string]string{
		"malformed":    `{"tasks": [`,
		"no tasks":     `{"items": []}`,
		"duplicate id": `{"tasks": [{"id": "a"}, {"id": "a"}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			archive := writeArchive(t, map[string]string{
				"notes.txt":      "kept only if everything is valid",
				"taskboard.json": body,
			})
			target := filepath.Join(t.TempDir(), "out")
			if _, err := Restore(archive, target, false); err == nil {
				t.Fatalf("expected validation error")
			}
			if _, err := os.Stat(target); !os.IsNotExist(err) {
				t.Fatalf("target should not be created on failure")
			}
		})
	}
}

func TestRestore_RejectsUnsafePaths(t *testing.T) {
	for _, name := range []string{"../escape.json", "/abs.json", "nested/taskboard.json"} {
		t.Run(name, func(t *testing.T) {
			archive := writeArchive(t, map[string]string{name: collection})
			if _, err := Restore(archive, filepath.Join(t.TempDir(), "out"), false); err == nil {
				t.Fatalf("expected restore to reject %s", name)
			}
		})
	}
}

func TestWriteTarGz_RemovesPartialArchive(t *testing.T) {
	paths := writeFiles(t, t.TempDir(), map[string]string{"taskboard.json": collection})
	info, err := os.Stat(paths[0])
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := os.Remove(paths[0]); err != nil {
		t.Fatalf("remove source: %v", err)
	}

	archive := filepath.Join(t.TempDir(), "partial.tar.gz")
	if _, err := writeTarGz(archive, []source{{path: paths[0], info: info}}); err == nil {
		t.Fatalf("expected error for vanished source")
	}
	if _, err := os.Stat(archive); !os.IsNotExist(err) {
		t.Fatalf("partial archive left behind: %v", err)
	}
}

func TestRestorePaths_SplitsAcrossDirectories(t *testing.T) {
	src := t.TempDir()
	paths := writeFiles(t, src, map[string]string{
		"data/taskboard.json":               collection,
		"templates/taskboard.template.json": `{"tasks": []}`,
	})
	archive := filepath.Join(t.TempDir(), "b.tar.gz")
	if _, err := Backup(paths, archive); err != nil {
		t.Fatalf("backup: %v", err)
	}

	dst := t.TempDir()
	storePath := filepath.Join(dst, "data", "taskboard.json")
	templatePath := filepath.Join(dst, "tmpl", "taskboard.template.json")
	restored, err := RestorePaths(archive, map[string]string{
		"taskboard.json":          storePath,
		"taskboard.template.json": templatePath,
	}, false)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	sort.Strings(restored)
	if !reflect.DeepEqual(restored, []string{storePath, templatePath}) {
		t.Fatalf("unexpected restored paths %v", restored)
	}
	if b, err := os.ReadFile(templatePath); err != nil || string(b) != `{"tasks": []}` {
		t.Fatalf("template not restored in its own directory: %q %v", b, err)
	}

	if _, err := RestorePaths(archive, map[string]string{"taskboard.json": storePath}, true); err == nil {
		t.Fatalf("expected error for entry without destination")
	}
}
