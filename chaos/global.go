package chaos

import "sync"

var (
	globalMu  sync.Mutex
	global    *Injector
	globalErr error
	globalSet bool
)

// Global lazily builds one process-wide injector via FromEnv and memoizes
// the outcome, construction failure included. Hosts with a composition root
// should construct and pass their own instance instead; this accessor exists
// for drop-in use.
func Global() (*Injector, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if !globalSet {
		global, globalErr = FromEnv(Overrides{})
		globalSet = true
	}
	return global, globalErr
}

func resetGlobal() {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = nil
	globalErr = nil
	globalSet = false
}
