//go:build !unix && !windows

package fatallog

import (
	"os"
	"sync"
)

// No advisory locks on this platform; writers in one process still serialize.
var fileMu sync.Mutex

func lockFile(*os.File) error {
	fileMu.Lock()
	return nil
}

func unlockFile(*os.File) error {
	fileMu.Unlock()
	return nil
}
