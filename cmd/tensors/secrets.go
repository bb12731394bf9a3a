package main

import (
	"sync"

	"github.com/tensors-cli/tensors/keystore"
)

// live holds every secret the running command has in memory so the signal
// handler can zero them before exiting.
var live struct {
	sync.Mutex
	secrets []*keystore.SecretString
}

// guard registers s for wiping on interrupt and returns it.
func guard(s *keystore.SecretString) *keystore.SecretString {
	if s == nil {
		return nil
	}
	live.Lock()
	live.secrets = append(live.secrets, s)
	live.Unlock()
	return s
}

// guardKeystore registers the phrase, seed and password held by k.
func guardKeystore(k *keystore.Keystore) *keystore.Keystore {
	if k == nil {
		return nil
	}
	guard(k.SecretPhrase)
	guard(k.SecretSeed)
	guard(k.Password)
	return k
}

func wipeGuarded() {
	live.Lock()
	defer live.Unlock()
	for _, s := range live.secrets {
		s.Wipe()
	}
	live.secrets = nil
}
