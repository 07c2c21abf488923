package main

import (
	"os"
	"testing"
)

// TestMain blanks the variables the run and report commands fall back to, so
// binary tests never reach a developer's database or bucket. Set but empty,
// they are also not overridden by a local .env file.
func TestMain(m *testing.M) {
	for _, key := range []string{"DATABASE_URL", "AWS_ENDPOINT_URL_S3"} {
		_ = os.Setenv(key, "")
	}
	os.Exit(m.Run())
}
