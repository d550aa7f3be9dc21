package cmd_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/tablebus/cmd"
	"github.com/shaharia-lab/tablebus/internal/config"
)

const lunchRush = `name: lunch rush
history_capacity: 2
events:
  - type: order:created
    payload: {order_id: o1, customer_name: Ann}
  - type: kitchen:status_updated
    payload: {order_id: o1, status: preparing}
  - type: order:paid
    payload: {order_id: o1, amount: 24.5, payment_method: card}
`

func writeScenario(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lunch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(lunchRush), 0o600))
	return path
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg := &config.AppConfig{HistoryCapacity: 100, LogLevel: "error"}
	root := cmd.NewRootCmd(cfg)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

type replayedEvent struct {
	Type     string `json:"type"`
	Sequence uint64 `json:"sequence"`
}

func TestReplay_UsesScenarioCapacity(t *testing.T) {
	out, err := runRoot(t, "replay", writeScenario(t))
	require.NoError(t, err)

	var got []replayedEvent
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "kitchen:status_updated", got[0].Type)
	assert.Equal(t, "order:paid", got[1].Type)
	assert.Equal(t, uint64(3), got[1].Sequence)
}

func TestReplay_CapacityFlagWins(t *testing.T) {
	out, err := runRoot(t, "replay", "--capacity", "5", writeScenario(t))
	require.NoError(t, err)

	var got []replayedEvent
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "order:created", got[0].Type)
}

func TestReplay_MissingFile(t *testing.T) {
	_, err := runRoot(t, "replay", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading scenario")
}

func TestReplay_RequiresOneArg(t *testing.T) {
	_, err := runRoot(t, "replay")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := runRoot(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tablebus dev")
}
