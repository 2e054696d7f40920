package warehouse

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/mktwh/internal/table"
)

// WriteFileAtomic writes path through a temporary file in the same
// directory and renames it into place.
func WriteFileAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// Write stores a table at its catalog path and returns the path.
func (l Layout) Write(t *table.Table) (string, error) {
	path, err := l.Path(t.Name)
	if err != nil {
		return "", err
	}
	if err := WriteFileAtomic(path, t.WriteCSV); err != nil {
		return "", fmt.Errorf("write %s: %w", t.Name, err)
	}
	return path, nil
}

// Read loads a produced table as untyped records.
func (l Layout) Read(name string) (*table.Raw, error) {
	path, err := l.Path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	raw, err := table.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return raw, nil
}
