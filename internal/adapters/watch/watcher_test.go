package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/raidtrack/internal/adapters/watch"
)

type countingScanner struct {
	mu    sync.Mutex
	calls int
}

func (s *countingScanner) ScanFile(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return "batch", nil
}

func (s *countingScanner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestWatcher(t *testing.T) {
	Convey("Given a watched bib list", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "bibs.txt")
		So(os.WriteFile(path, []byte("1\n"), 0o600), ShouldBeNil)

		scanner := &countingScanner{}
		w := watch.New(path, scanner, watch.WithDebounce(50*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()
		Reset(func() {
			cancel()
			<-done
		})
		// let the watcher register
		time.Sleep(100 * time.Millisecond)

		Convey("A burst of writes triggers one scan", func() {
			for i := 0; i < 3; i++ {
				So(os.WriteFile(path, []byte("1\n2\n"), 0o600), ShouldBeNil)
			}
			So(eventually(func() bool { return scanner.count() == 1 }), ShouldBeTrue)
			time.Sleep(150 * time.Millisecond)
			So(scanner.count(), ShouldEqual, 1)
		})

		Convey("Other files in the directory are ignored", func() {
			So(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600), ShouldBeNil)
			time.Sleep(200 * time.Millisecond)
			So(scanner.count(), ShouldEqual, 0)
		})

		Convey("A file replaced by rename is followed", func() {
			tmp := filepath.Join(dir, "bibs.txt.tmp")
			So(os.WriteFile(tmp, []byte("3\n"), 0o600), ShouldBeNil)
			So(os.Rename(tmp, path), ShouldBeNil)
			So(eventually(func() bool { return scanner.count() >= 1 }), ShouldBeTrue)
		})
	})

	Convey("Given a watcher without a path", t, func() {
		w := watch.New("", &countingScanner{})

		Convey("Run fails", func() {
			So(w.Run(context.Background()), ShouldEqual, watch.ErrNoPath)
		})
	})
}
