// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// Path returns the absolute path of a fixture stored next to this file.
func Path(name string) string {
	_, self, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(self), name)
}

// DecodeFixture decodes the JSON fixture name into target, failing the
// test on any error.
func DecodeFixture(t testing.TB, name string, target any) {
	t.Helper()
	data, err := os.ReadFile(Path(name))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "fixture %s", name)
}
