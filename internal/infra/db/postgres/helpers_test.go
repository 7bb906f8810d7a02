package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONOrWrapped(t *testing.T) {
	require.Equal(t, "{}", jsonOrWrapped(""))
	require.Equal(t, `[1,2]`, jsonOrWrapped(`[1,2]`))
	require.JSONEq(t, `{"raw":"{broken"}`, jsonOrWrapped("{broken"))
}
