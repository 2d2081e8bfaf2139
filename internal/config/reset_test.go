package config

import "sync"

// ResetForTesting resets the global config state without taking configMu, so
// it can be passed straight to t.Cleanup.
//
//	func TestWithCustomConfig(t *testing.T) {
//	    t.Cleanup(config.ResetForTesting)
//	    t.Setenv(config.ConfigEnvVar, path)
//	    cfg, err := config.Get()
//	}
func ResetForTesting() {
	globalConfig = nil
	errConfig = nil
	configOnce = sync.Once{}
}
