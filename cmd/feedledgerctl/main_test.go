package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	urfave "github.com/urfave/cli/v2"

	"github.com/yfarmers/feedledger/internal/ledger"
)

func TestCommandsRegistered(t *testing.T) {
	a := newApp()
	names := make([]string, 0, len(a.Commands))
	for _, c := range a.Commands {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"closing", "mirrors", "net-value", "jobs"}, names)
}

func TestJobsTriggerRequiresName(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	a := newApp()
	out := new(bytes.Buffer)
	a.Writer = out
	a.ErrWriter = out
	a.ExitErrHandler = func(*urfave.Context, error) {}
	err := a.Run([]string{"feedledgerctl", "jobs", "trigger"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one job name")
}

func TestDateOrToday(t *testing.T) {
	assert.Equal(t, "01-03-2024", dateOrToday("01-03-2024"))
	_, err := ledger.ParseDate(dateOrToday(""))
	assert.NoError(t, err)
}
