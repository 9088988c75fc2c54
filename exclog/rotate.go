package exclog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// rotatingFile is an append-only file that is moved to path+".old" before
// a write would take it past maxSize.
type rotatingFile struct {
	path    string
	maxSize int64

	mu   sync.Mutex
	file *os.File
	size int64
}

func openRotatingFile(path string, maxSize int64) (*rotatingFile, error) {
	rf := &rotatingFile{path: path, maxSize: maxSize}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *rotatingFile) open() error {
	if err := os.MkdirAll(filepath.Dir(rf.path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(rf.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %q: %w", rf.path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to stat log file %q: %w", rf.path, err)
	}

	rf.file = file
	rf.size = info.Size()
	return nil
}

func (rf *rotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, os.ErrClosed
	}

	if rf.maxSize > 0 && rf.size > 0 && rf.size+int64(len(p)) > rf.maxSize {
		if err := rf.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

// rotate moves the current file aside and reopens path. When the move
// fails, path is reopened as is and the next write tries again.
func (rf *rotatingFile) rotate() error {
	var result error
	if err := rf.file.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close log file %q: %w", rf.path, err))
	}
	rf.file = nil

	old := rf.path + ".old"
	_ = os.Remove(old)
	if err := os.Rename(rf.path, old); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to rotate log file %q: %w", rf.path, err))
	}

	if err := rf.open(); err != nil {
		return multierror.Append(result, err)
	}
	return nil
}

func (rf *rotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}
