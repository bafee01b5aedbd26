package core

import "log"

// logf reports non-fatal background failures, like an allocation pass that
// could not run after a commit already succeeded. Swappable in tests.
var logf = log.Printf
