package io

import (
	"io"
	"os"
	"path/filepath"

	xe "github.com/opst/netsec/pkg/errors"
)

const (
	FileMode os.FileMode = 0644
	DirMode  os.FileMode = 0755
)

// WriteAll writes whole content into name, creating parent directories.
//
// Content is written to a temporary file beside name and renamed to name,
// so readers see either the previous content or the whole new one.
// `DirMode` effects to only newly-created direcotries.
//
// Errors are classified as IOError.
func WriteAll(name string, write func(io.Writer) error) error {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return xe.WrapAs(xe.KindIO, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*")
	if err != nil {
		return xe.WrapAs(xe.KindIO, err)
	}
	tmp := f.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmp)
		}
	}()

	if err := write(f); err != nil {
		f.Close()
		return xe.WrapAsWithNote(xe.KindIO, name, err)
	}
	if err := f.Chmod(FileMode); err != nil {
		f.Close()
		return xe.WrapAs(xe.KindIO, err)
	}
	if err := f.Close(); err != nil {
		return xe.WrapAs(xe.KindIO, err)
	}
	if err := os.Rename(tmp, name); err != nil {
		return xe.WrapAs(xe.KindIO, err)
	}
	committed = true
	return nil
}

// CopyFile copies src to dst, creating parent directories of dst.
func CopyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return xe.WrapAs(xe.KindIO, err)
	}
	defer in.Close()
	return WriteAll(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}
