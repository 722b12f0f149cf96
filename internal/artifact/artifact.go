// Package artifact locates the binary a toolchain wrote next to its input
// and stages it at the canonical output path.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// Ext is the extension of artifacts written by the toolchain.
	Ext = ".rom"
	// OutputName is the canonical name of a staged artifact.
	OutputName = "output" + Ext
)

// ErrMissing reports that the toolchain did not produce an artifact.
var ErrMissing = errors.New("artifact missing")

// Descriptor holds the two paths involved in staging one build.
type Descriptor struct {
	Expected  string // <workdir>/<base>.rom, written by the toolchain
	Canonical string // <workdir>/output.rom
}

// OutputPath returns the canonical staged artifact path for dir.
func OutputPath(dir string) string {
	return filepath.Join(dir, OutputName)
}

// Locate derives the Descriptor for inputPath. The working directory is the
// input's parent and the base name is the file name without its extension.
func Locate(inputPath string) Descriptor {
	dir := filepath.Dir(inputPath)
	name := filepath.Base(inputPath)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return Descriptor{
		Expected:  filepath.Join(dir, base+Ext),
		Canonical: OutputPath(dir),
	}
}

// Probe reports whether the expected artifact exists as a regular file.
// Any stat failure is reported as ErrMissing.
func (d Descriptor) Probe() error {
	info, err := os.Stat(d.Expected)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMissing, d.Expected, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrMissing, d.Expected)
	}
	return nil
}

// CopyError reports a failure to stage a probed artifact.
type CopyError struct {
	Src string
	Dst string
	Err error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copying artifact %s to %s: %v", e.Src, e.Dst, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// Stage copies the expected artifact to the canonical path, replacing any
// previous output. The copy goes through a temp file in the same directory
// so a failed copy never leaves a partial output behind.
func (d Descriptor) Stage() error {
	if d.Expected == d.Canonical {
		return nil
	}
	if err := copyFile(d.Expected, d.Canonical); err != nil {
		return &CopyError{Src: d.Expected, Dst: d.Canonical, Err: err}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}
