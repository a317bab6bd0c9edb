package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"finreport_srv/internal/models"
	"finreport_srv/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCLIEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("APP_DATABASE_DSN", filepath.Join(dir, "reports.db"))
	t.Setenv("APP_STORAGE_BASEPATH", filepath.Join(dir, "generated"))
	t.Setenv("APP_LOGGING_LEVEL", "error")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateAndList(t *testing.T) {
	dir := setupCLIEnv(t)

	out, err := execute(t, "generate", "--client", "Acme", "--type", "P&L", "--year", "2023", "--json")
	require.NoError(t, err)

	var resp models.GenerateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, filepath.Join(dir, "generated", resp.FileName), resp.FilePath)

	_, err = os.Stat(resp.FilePath)
	require.NoError(t, err)

	out, err = execute(t, "list", "--json")
	require.NoError(t, err)

	var list service.ReportList
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list.Reports, 1)
	assert.Equal(t, resp.FileName, list.Reports[0].FileName)

	out, err = execute(t, "list", "--client", "Acme")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "CREATED"))
	assert.Contains(t, out, resp.FileName)
}

func TestGenerateRequiresFlags(t *testing.T) {
	setupCLIEnv(t)

	_, err := execute(t, "generate", "--client", "Acme")
	assert.Error(t, err)
}

func TestGenerateRejectsBlankClient(t *testing.T) {
	setupCLIEnv(t)

	_, err := execute(t, "generate", "--client", "  ", "--type", "P&L")
	assert.EqualError(t, err, "Client name is required")
}
