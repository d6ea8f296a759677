package common

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const pollInterval = 10 * time.Millisecond

// MakeTempFileWithContent writes content into a file named name inside a test temp dir.
func MakeTempFileWithContent(t *testing.T, name, content string) string {
	t.Helper()

	filePath := filepath.Join(t.TempDir(), name)

	if err := WriteFileWithPermission(filePath, []byte(content), 0o600, true); err != nil { //nolint:mnd
		t.Fatal(err)
	}

	return filePath
}

func WriteFileWithPermission(path string, data []byte, perm fs.FileMode, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	flag := os.O_WRONLY | os.O_CREATE

	if overwrite {
		flag |= os.O_TRUNC
	} else {
		flag |= os.O_EXCL
	}

	file, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()

		return err
	}

	return file.Close()
}

// ReadLogFileAndSearchString polls logPath until it contains stringToMatch or timeout expires.
func ReadLogFileAndSearchString(logPath string, stringToMatch string, timeout time.Duration) (bool, error) {
	ctx, cancelFunc := context.WithTimeout(context.Background(), timeout)
	defer cancelFunc()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		content, err := os.ReadFile(logPath)
		if err != nil {
			return false, err
		}

		if strings.Contains(string(content), stringToMatch) {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, nil
		case <-ticker.C:
		}
	}
}

// ReportFiles lists the report files written into dir.
func ReportFiles(t *testing.T, dir string) []string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, "migration_report_*"))
	if err != nil {
		t.Fatal(err)
	}

	return matches
}
