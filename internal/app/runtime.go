package app

import (
	"os"
	"strconv"
)

// TestModeEnv makes the feedledger and worker binaries return before they
// dial Postgres or Redis. The testing package sets it for every test binary
// that imports it.
const TestModeEnv = "FEEDLEDGER_TEST_MODE"

// InTestMode reports whether TestModeEnv holds a true boolean.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}
