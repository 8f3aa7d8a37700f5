package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountdesk/backend/internal/auth"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashPassword(t *testing.T) {
	out, err := execute(t, "s3cret\n", "hash-password")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("s3cret", strings.TrimSpace(out)))

	_, err = execute(t, "", "hash-password")
	assert.Error(t, err)
}

func TestCollectionsAndRecords(t *testing.T) {
	dir := t.TempDir()
	data := []string{"--storage.data_dir", dir}

	out, err := execute(t, "", append(data, "collections", "create", "Netflix")...)
	require.NoError(t, err)
	assert.Equal(t, "created Netflix\n", out)

	_, err = execute(t, "", append(data, "collections", "create", "Netflix")...)
	assert.Error(t, err)

	_, err = execute(t, "", append(data, "collections", "create", "../escape")...)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "CloudflareTempEmail.json"), []byte("[]"), 0644))

	out, err = execute(t, "", append(data, "collections", "list")...)
	require.NoError(t, err)
	assert.Equal(t, "ServiceAccounts\nNetflix\n", out)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Netflix.json"), []byte(`[
  {"Email": "a@x.com", "Password": "p", "Availability": true, "RegistrationDate": "2024-03-05", "ActiveUntil": "", "Warranty": "", "Service": "Netflix"}
]`), 0644))

	out, err = execute(t, "", append(data, "records", "list", "Netflix")...)
	require.NoError(t, err)
	assert.Contains(t, out, "a@x.com")
	assert.Contains(t, out, "05.03.2024")

	_, err = execute(t, "", append(data, "records", "list", "Missing")...)
	assert.Error(t, err)
}
