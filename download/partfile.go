package download

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

const partSuffix = ".part"

// workingPath returns the file the transfer writes to.
func workingPath(dest string, usePart bool) string {
	if usePart {
		return dest + partSuffix
	}
	return dest
}

// adoptDest moves a finished dest into place as the part file so the
// resume rules can judge it against the remote size.
func adoptDest(dest, part string) (bool, error) {
	if dest == part {
		return false, nil
	}

	if _, err := os.Stat(part); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("checking part file: %w", err)
	}

	fi, err := os.Stat(dest)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking destination: %w", err)
	}
	if !fi.Mode().IsRegular() {
		return false, nil
	}

	if err := os.Rename(dest, part); err != nil {
		return false, fmt.Errorf("moving destination to part file: %w", err)
	}

	return true, nil
}

// localSize returns the size of path, 0 if it does not exist.
func localSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("checking local file: %w", err)
	}
	return fi.Size(), nil
}

// publish renames the working file to dest.
func publish(work, dest string) error {
	if work == dest {
		return nil
	}
	if err := os.Rename(work, dest); err != nil {
		return fmt.Errorf("renaming part file: %w", err)
	}
	return nil
}
