package app

import (
	"os"
	"sync"
)

// TestModeEnv, when set to "1", makes the quotedoc CLI and the export worker
// return from main before connecting to Redis, the quotation backend or the
// PDF converter. The router also drops its request logger so package tests
// stay quiet. The testing package sets it from an init function.
const TestModeEnv = "QUOTEDOC_TEST_MODE"

// InTestMode reports whether TestModeEnv was set when first consulted. The
// value is cached for the life of the process.
var InTestMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})
