package templating

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/inf.v0"
)

func mustDec(t *testing.T, s string) *inf.Dec {
	t.Helper()
	d, ok := new(inf.Dec).SetString(s)
	require.True(t, ok, "invalid decimal %q", s)
	return d
}
