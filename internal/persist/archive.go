package persist

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ArchiveStats summarizes what an archive operation touched.
type ArchiveStats struct {
	Files int
	Bytes int64
}

// WriteArchive streams every regular file under dir into w as a
// zstd-compressed tar. Paths are stored relative to dir. SQLite side files
// (-wal, -shm) are skipped; close the catalog first so its contents are in
// the main file.
func WriteArchive(dir string, w io.Writer) (ArchiveStats, error) {
	var stats ArchiveStats
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return stats, fmt.Errorf("zstd writer: %w", err)
	}
	tw := tar.NewWriter(enc)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || skipInArchive(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		n, err := copyFileTo(tw, path)
		if err != nil {
			return err
		}
		stats.Files++
		stats.Bytes += n
		return nil
	})
	if walkErr != nil {
		_ = tw.Close()
		_ = enc.Close()
		return stats, fmt.Errorf("archive %s: %w", dir, walkErr)
	}
	if err := tw.Close(); err != nil {
		_ = enc.Close()
		return stats, fmt.Errorf("finish tar: %w", err)
	}
	if err := enc.Close(); err != nil {
		return stats, fmt.Errorf("finish zstd: %w", err)
	}
	return stats, nil
}

func skipInArchive(name string) bool {
	return strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, "-wal") || strings.HasSuffix(name, "-shm")
}

func copyFileTo(w io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}

// RestoreArchive unpacks an archive written by WriteArchive into dir.
// Entries that would escape dir are rejected.
func RestoreArchive(r io.Reader, dir string) (ArchiveStats, error) {
	var stats ArchiveStats
	dec, err := zstd.NewReader(r)
	if err != nil {
		return stats, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		target, err := archiveTarget(dir, hdr.Name)
		if err != nil {
			return stats, err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return stats, fmt.Errorf("create %s: %w", filepath.Dir(target), err)
		}
		n, err := writeFileFrom(target, tr)
		if err != nil {
			return stats, fmt.Errorf("restore %s: %w", hdr.Name, err)
		}
		stats.Files++
		stats.Bytes += n
	}
}

func archiveTarget(dir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the target directory", name)
	}
	return filepath.Join(dir, clean), nil
}

func writeFileFrom(path string, r io.Reader) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, r)
	if err != nil {
		out.Close()
		return n, err
	}
	return n, out.Close()
}
