package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CHASKIT_URL", "")
	t.Setenv("CHASKIT_API_KEY", "")

	out := &bytes.Buffer{}
	err := newApp(strings.NewReader(stdin), out).Run(append([]string{"chaskit"}, args...))
	return out.String(), err
}

func TestRate(t *testing.T) {
	out, err := run(t, "", "rate", "--characters", "8", "--plot", "6", "--writing-style", "7", "--legacy")
	require.NoError(t, err)

	assert.Contains(t, out, "World Building")
	assert.Contains(t, out, "N/A")
	assert.Regexp(t, `Overall\s+7\.0\s+★★★½·`, out)
	assert.Regexp(t, `Legacy overall\s+4\.2\s+★★·`, out)

	_, err = run(t, "", "rate", "--plot", "11")
	require.Error(t, err)
}

func TestRate_Guide(t *testing.T) {
	out, err := run(t, "", "rate", "--enjoyment", "1", "--guide")
	require.NoError(t, err)
	assert.Contains(t, out, "Hated it, could barely finish reading")
}

func TestUnconfigured(t *testing.T) {
	out, err := run(t, "", "status")
	require.NoError(t, err)
	assert.Regexp(t, `connection\s+disconnected`, out)

	out, err = run(t, "", "books", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 0 books")

	_, err = run(t, "", "genres", "add", "Solarpunk")
	require.Error(t, err)

	_, err = run(t, "", "books", "show")
	require.ErrorContains(t, err, "missing <id> argument")
}

func TestStars(t *testing.T) {
	assert.Equal(t, "·····", stars(0))
	assert.Equal(t, "★★★½·", stars(3.5))
	assert.Equal(t, "★★★★★", stars(5))
	assert.Equal(t, "★★★★½", stars(4.6))
}
