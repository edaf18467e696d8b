package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"media-streamer/internal/metrics"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE error", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT error", syscall.ENOENT, false},
		{"generic error", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWithRetryRecoversFromStaleHandle(t *testing.T) {
	before := testutil.ToFloat64(metrics.FilesystemRetries.WithLabelValues("test", "success"))

	calls := 0
	v, err := withRetry("test", "/nfs/a.mp3", fastConfig(), func(string) (int, error) {
		calls++
		if calls < 3 {
			return 0, &os.PathError{Op: "open", Path: "/nfs/a.mp3", Err: syscall.ESTALE}
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if v != 42 {
		t.Errorf("Expected 42, got %d", v)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
	if got := testutil.ToFloat64(metrics.FilesystemRetries.WithLabelValues("test", "success")); got-before != 1 {
		t.Errorf("Expected one successful retry recorded, got %v", got-before)
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	calls := 0
	_, err := withRetry("test", "/nfs/b.mp3", fastConfig(), func(string) (int, error) {
		calls++
		return 0, syscall.ESTALE
	})

	if !errors.Is(err, syscall.ESTALE) {
		t.Errorf("Expected ESTALE, got %v", err)
	}
	if calls != 4 {
		t.Errorf("Expected 4 calls (1 + 3 retries), got %d", calls)
	}
}

func TestWithRetryDoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	_, err := withRetry("test", "/nfs/c.mp3", fastConfig(), func(string) (int, error) {
		calls++
		return 0, os.ErrPermission
	})

	if !errors.Is(err, os.ErrPermission) {
		t.Errorf("Expected permission error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected a single call, got %d", calls)
	}
}

func TestStatWithRetry(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	info, err := StatWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v, want nil", err)
	}
	if info.Size() != 4 {
		t.Errorf("FileInfo.Size() = %d, want 4", info.Size())
	}

	_, err = StatWithRetry(filepath.Join(tmpDir, "missing"), fastConfig())
	if !os.IsNotExist(err) {
		t.Errorf("StatWithRetry() error = %v, want os.IsNotExist", err)
	}
}

func TestOpenWithRetry(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("test content"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	file, err := OpenWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v, want nil", err)
	}
	defer file.Close()

	buf := make([]byte, 4)
	if _, err := file.Read(buf); err != nil {
		t.Errorf("file.Read() error = %v", err)
	}
	if string(buf) != "test" {
		t.Errorf("Expected test, got %q", buf)
	}

	if _, err := OpenWithRetry(filepath.Join(tmpDir, "missing"), fastConfig()); !os.IsNotExist(err) {
		t.Errorf("OpenWithRetry() error = %v, want os.IsNotExist", err)
	}
}
