// Package ingest normalizes raw log bundles into ordered, timestamped
// records. It walks directories, ZIP archives and nested .log.zip members,
// and decodes UTF-8 or CP949 text as found on vehicle controllers.
package ingest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// IngestionError reports malformed or unreadable input. It is surfaced to
// the caller before any analysis pass starts.
type IngestionError struct {
	Path string
	Err  error
}

func (e *IngestionError) Error() string { return fmt.Sprintf("ingest %s: %v", e.Path, e.Err) }
func (e *IngestionError) Unwrap() error { return e.Err }

var binaryExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true, ".gif": true,
	".7z": true, ".tar": true, ".gz": true, ".xz": true,
	".dll": true, ".so": true, ".bin": true, ".exe": true, ".db": true,
}

func texty(name string) bool {
	return !binaryExt[strings.ToLower(filepath.Ext(name))]
}

// WalkBundle walks a log or source bundle at path, which may be a directory,
// a ZIP archive, or a single file, and calls fn with a bundle-relative name
// and raw bytes for each contained file. ZIP members named *.log.zip are
// expanded in place. Walk order is deterministic: directories are visited
// in sorted order, ZIP members in archive order.
func WalkBundle(path string, fn func(name string, data []byte) error) error {
	info, err := os.Stat(path)
	if err != nil {
		return &IngestionError{Path: path, Err: err}
	}
	if info.IsDir() {
		return walkDir(path, fn)
	}
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return walkZipFile(path, fn)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &IngestionError{Path: path, Err: err}
	}
	return fn(filepath.Base(path), data)
}

func walkDir(dir string, fn func(string, []byte) error) error {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return &IngestionError{Path: dir, Err: err}
	}
	sort.Strings(files)
	for _, p := range files {
		rel, _ := filepath.Rel(dir, p)
		if strings.EqualFold(filepath.Ext(p), ".zip") {
			if err := walkZipFile(p, func(name string, data []byte) error {
				return fn(filepath.ToSlash(rel)+":"+name, data)
			}); err != nil {
				return err
			}
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return &IngestionError{Path: p, Err: err}
		}
		if err := fn(filepath.ToSlash(rel), data); err != nil {
			return err
		}
	}
	return nil
}

func walkZipFile(path string, fn func(string, []byte) error) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return &IngestionError{Path: path, Err: err}
	}
	defer zr.Close()
	base := filepath.Base(path)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readZipMember(f)
		if err != nil {
			return &IngestionError{Path: path + ":" + f.Name, Err: err}
		}
		if err := emitZipMember(base+":"+f.Name, f.Name, data, fn); err != nil {
			return err
		}
	}
	return nil
}

// emitZipMember expands nested .log.zip members; anything else is emitted
// as-is. A corrupt nested archive is skipped rather than failing the bundle,
// matching how field bundles mix good and truncated rotations.
func emitZipMember(qualified, member string, data []byte, fn func(string, []byte) error) error {
	if strings.HasSuffix(strings.ToLower(member), ".log.zip") {
		inner, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil
		}
		for _, f := range inner.File {
			if f.FileInfo().IsDir() {
				continue
			}
			innerData, err := readZipMember(f)
			if err != nil {
				continue
			}
			if err := fn(qualified+":"+f.Name, innerData); err != nil {
				return err
			}
		}
		return nil
	}
	return fn(qualified, data)
}

func readZipMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// DecodeText decodes controller text output: UTF-8 when valid, CP949
// otherwise. Undecodable bytes are replaced, never fatal.
func DecodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}
