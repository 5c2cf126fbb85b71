package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotkeep-dev/lotkeep/internal/auditlog"
)

func run(t *testing.T, dataDir string, args ...string) string {
	t.Helper()
	out, err := runE(dataDir, args...)
	require.NoError(t, err, out)
	return out
}

func runE(dataDir string, args ...string) (string, error) {
	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--data", dataDir}, args...))
	err := root.Execute()
	return buf.String(), err
}

func initLedger(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run(t, dir, "init")
	return dir
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	out := run(t, dir, "init")
	assert.Contains(t, out, "Initialized ledger")

	_, err := os.Stat(filepath.Join(dir, "lotkeep.yaml"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "import", "processed"))
	assert.NoError(t, err)

	_, err = runE(dir, "init")
	assert.Error(t, err, "double init refused")
}

func TestCommandsRequireInit(t *testing.T) {
	_, err := runE(t.TempDir(), "account", "ls")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lotkeep init")
}

func TestAccountAddAndList(t *testing.T) {
	dir := initLedger(t)

	run(t, dir, "account", "add", "addr1",
		"--description", "cold wallet",
		"--amount", "10", "--price", "2.50", "--when", "2024-01-01")

	out := run(t, dir, "account", "ls")
	assert.Contains(t, out, "addr1 (SOL): 10  cold wallet")
	assert.Contains(t, out, "acquired 2024-01-01 at 2.5")

	entries, err := auditlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "account add", entries[0].Operation)
}

func TestAccountDispose(t *testing.T) {
	dir := initLedger(t)
	run(t, dir, "account", "add", "addr1",
		"--amount", "10", "--price", "2", "--when", "2024-01-01")

	out := run(t, dir, "account", "dispose", "addr1",
		"--amount", "4", "--price", "5", "--when", "2025-06-01")
	assert.Contains(t, out, "gain 12.00 (long-term)")

	out = run(t, dir, "account", "ls")
	assert.Contains(t, out, "addr1 (SOL): 6")
}

func TestAccountDisposeInsufficient(t *testing.T) {
	dir := initLedger(t)
	run(t, dir, "account", "add", "addr1",
		"--amount", "1", "--price", "2", "--when", "2024-01-01")

	_, err := runE(dir, "account", "dispose", "addr1",
		"--amount", "5", "--price", "5")
	require.Error(t, err)
}

func TestAccountRemove(t *testing.T) {
	dir := initLedger(t)
	run(t, dir, "account", "add", "addr1",
		"--amount", "1", "--price", "2", "--when", "2024-01-01")

	_, err := runE(dir, "account", "rm", "addr1")
	require.Error(t, err, "refuses while lots remain")

	run(t, dir, "account", "rm", "addr1", "--force")
	out := run(t, dir, "account", "ls")
	assert.NotContains(t, out, "addr1")
}

func TestTaxShowDefaults(t *testing.T) {
	dir := initLedger(t)
	out := run(t, dir, "tax", "show")
	assert.Contains(t, out, "income 30%, short-term 30%, long-term 15%")
}

func TestTaxSetAndReport(t *testing.T) {
	dir := initLedger(t)
	run(t, dir, "tax", "set", "--long-term", "20")

	run(t, dir, "account", "add", "addr1",
		"--amount", "10", "--price", "2", "--when", "2024-01-01")
	run(t, dir, "account", "dispose", "addr1",
		"--amount", "10", "--price", "5", "--when", "2025-06-01")

	out := run(t, dir, "tax", "show")
	assert.Contains(t, out, "long-term 20%")
	// 10 * (5-2) = 30 long-term gain at 20%.
	assert.Contains(t, out, "long-term 30.00")
	assert.Contains(t, out, "Estimated tax: 6.00")
}

func TestPendingLifecycle(t *testing.T) {
	dir := initLedger(t)

	run(t, dir, "pending", "deposit", "sig-d1",
		"--exchange", "kraken", "--tag", "dep-1", "--to", "kraken:deposit",
		"--amount", "3", "--last-valid-block-height", "1000")

	out := run(t, dir, "pending", "ls")
	assert.Contains(t, out, "deposit sig-d1: 3 SOL to kraken:deposit via kraken")

	run(t, dir, "pending", "cancel", "deposit", "sig-d1")
	out = run(t, dir, "pending", "ls")
	assert.NotContains(t, out, "sig-d1")

	_, err := runE(dir, "pending", "cancel", "rebase", "sig-d1")
	require.Error(t, err)
}

func TestExport(t *testing.T) {
	dir := initLedger(t)
	run(t, dir, "account", "add", "addr1",
		"--amount", "10", "--price", "2", "--when", "2024-01-01")
	run(t, dir, "account", "dispose", "addr1",
		"--amount", "4", "--price", "5", "--when", "2025-06-01")

	outFile := filepath.Join(dir, "disposed.csv")
	run(t, dir, "export", "--out", outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "SOL")
	assert.Contains(t, lines[1], "2025-06-01")
}

func TestSweepConfig(t *testing.T) {
	dir := initLedger(t)

	run(t, dir, "sweep", "set", "sweepDest", "--authority", "/keys/sweep.json")
	run(t, dir, "sweep", "add-transitory", "tmp1")

	out := run(t, dir, "sweep", "show")
	assert.Contains(t, out, "Sweep account: sweepDest")
	assert.Contains(t, out, "transitory: tmp1")

	run(t, dir, "sweep", "rm-transitory", "tmp1")
	out = run(t, dir, "sweep", "show")
	assert.NotContains(t, out, "tmp1")
}

func TestImport(t *testing.T) {
	dir := initLedger(t)

	fixture, err := os.ReadFile("../../testdata/coinbase_fills.csv")
	require.NoError(t, err)
	path := filepath.Join(dir, "import", "fills.csv")
	require.NoError(t, os.WriteFile(path, fixture, 0o644))

	out := run(t, dir, "import", "--address", "coinbase:main")
	assert.Contains(t, out, "3 lot(s) created, 2 disposal(s)")

	_, err = os.Stat(filepath.Join(dir, "import", "processed", "fills.csv"))
	assert.NoError(t, err, "scanned file moved after import")

	out = run(t, dir, "account", "ls", "coinbase:main")
	assert.Contains(t, out, "coinbase:main (SOL): 1")
}
