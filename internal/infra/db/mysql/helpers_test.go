package mysql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONOrWrapped(t *testing.T) {
	require.Equal(t, "{}", jsonOrWrapped("  "))
	require.Equal(t, `{"field":"name"}`, jsonOrWrapped(`{"field":"name"}`))
	require.JSONEq(t, `{"raw":"not json"}`, jsonOrWrapped("not json"))
}

func TestStringOrDash(t *testing.T) {
	require.Equal(t, "-", stringOrDash(""))
	require.Equal(t, "chat", stringOrDash("chat"))
}
