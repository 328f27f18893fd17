package update

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

const maxBinarySize = 512 << 20

type progressWriter struct {
	done    int64
	total   int64
	lastPct int64
	report  ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.done += int64(len(b))
	if p.report == nil {
		return len(b), nil
	}
	if p.total > 0 {
		pct := p.done * 100 / p.total
		if pct == p.lastPct && p.done < p.total {
			return len(b), nil
		}
		p.lastPct = pct
	}
	p.report(p.done, p.total)
	return len(b), nil
}

func writeStream(dest string, body io.Reader, total int64, progress ProgressFunc) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if total <= 0 {
		total = -1
	}
	pw := &progressWriter{total: total, lastPct: -1, report: progress}
	_, copyErr := io.Copy(io.MultiWriter(f, pw), body)
	syncErr := f.Sync()
	closeErr := f.Close()
	return errors.Join(copyErr, syncErr, closeErr)
}

// extractBinary writes the first regular file named like the binary from a
// gzipped tarball to dest.
func extractBinary(archive, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("archive has no %s binary", BinaryName)
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := path.Base(hdr.Name)
		if name != BinaryName && !strings.HasPrefix(name, BinaryName+"-") {
			continue
		}
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755)
		if err != nil {
			return err
		}
		n, copyErr := io.Copy(out, io.LimitReader(tr, maxBinarySize+1))
		closeErr := out.Close()
		if err := errors.Join(copyErr, closeErr); err != nil {
			return err
		}
		if n > maxBinarySize {
			return fmt.Errorf("%s in archive exceeds %d bytes", name, maxBinarySize)
		}
		return nil
	}
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// copyFile copies src to dst. A zero mode keeps the source permissions.
func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if mode == 0 {
		info, err := in.Stat()
		if err != nil {
			return err
		}
		mode = info.Mode().Perm()
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, in)
	syncErr := out.Sync()
	closeErr := out.Close()
	if err := errors.Join(copyErr, syncErr, closeErr); err != nil {
		return err
	}
	return os.Chmod(dst, mode)
}
