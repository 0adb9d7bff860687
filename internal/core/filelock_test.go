//go:build !windows

package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLockProject_SerializesSameDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shop")

	unlock, err := lockProject(dir, func() { t.Error("first lock should not wait") })
	if err != nil {
		t.Fatal(err)
	}

	waited := make(chan struct{})
	acquired := make(chan struct{})
	go func() {
		unlock2, err := lockProject(dir, func() { close(waited) })
		if err != nil {
			t.Error(err)
			close(acquired)
			return
		}
		close(acquired)
		unlock2()
	}()

	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("second lock never reported waiting")
	}
	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first was held")
	case <-time.After(50 * time.Millisecond):
	}

	if err := unlock(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("second lock not acquired after release")
	}
}

func TestLockProject_RemovesLockFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shop")

	unlock, err := lockProject(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir + ".lock"); err != nil {
		t.Fatalf("lock file missing while held: %v", err)
	}
	if err := unlock(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir + ".lock"); !os.IsNotExist(err) {
		t.Errorf("lock file left behind: %v", err)
	}
}

func TestLockProject_DistinctDirsDoNotBlock(t *testing.T) {
	root := t.TempDir()
	a, err := lockProject(filepath.Join(root, "a"), func() { t.Error("unexpected wait") })
	if err != nil {
		t.Fatal(err)
	}
	defer a()
	b, err := lockProject(filepath.Join(root, "b"), func() { t.Error("unexpected wait") })
	if err != nil {
		t.Fatal(err)
	}
	defer b()
}
