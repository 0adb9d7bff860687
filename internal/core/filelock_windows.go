package core

import "sync"

var (
	projectLocksMu sync.Mutex
	projectLocks   = make(map[string]*sync.Mutex)
)

// lockProject serializes runs writing into dir within this process. Windows
// has no flock, so runs in other processes are not excluded.
func lockProject(dir string, wait func()) (unlock func() error, err error) {
	projectLocksMu.Lock()
	mu, ok := projectLocks[dir]
	if !ok {
		mu = &sync.Mutex{}
		projectLocks[dir] = mu
	}
	projectLocksMu.Unlock()

	if !mu.TryLock() {
		if wait != nil {
			wait()
		}
		mu.Lock()
	}
	return func() error {
		mu.Unlock()
		return nil
	}, nil
}
