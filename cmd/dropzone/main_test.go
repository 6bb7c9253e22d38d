package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/dropzone-client/resources"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(append([]string{"--no-banner", "--env-file", ""}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(bytes.NewReader(nil))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDemo_Status(t *testing.T) {
	out, err := execute(t, "--demo", "status")
	require.NoError(t, err)
	require.Contains(t, out, "state: authenticated")
	require.Contains(t, out, demoEmail)
	require.Contains(t, out, "pro:   false")
}

func TestDemo_LocationsFilterAndSavedFlag(t *testing.T) {
	out, err := execute(t, "--demo", "locations", "list", "--country", "BE")
	require.NoError(t, err)
	require.Contains(t, out, "Skydive Spa")
	require.Contains(t, out, "true")
	require.NotContains(t, out, "Empuriabrava")
}

func TestDemo_SavedLocations(t *testing.T) {
	out, err := execute(t, "--demo", "locations", "list", "--saved")
	require.NoError(t, err)
	require.Contains(t, out, "dz-spa")
	require.NotContains(t, out, "wt-eloy")
}

func TestDemo_LogbookAdd(t *testing.T) {
	out, err := execute(t, "--demo", "logbook", "add", "--jump", "1", "--date", "2026-05-01", "--aircraft", "Caravan")
	require.NoError(t, err)
	require.Contains(t, out, "logged jump 1")
}

func TestDemo_LogbookAddRejectsBadDate(t *testing.T) {
	_, err := execute(t, "--demo", "logbook", "add", "--jump", "1", "--date", "yesterday")
	require.ErrorContains(t, err, "invalid --date")
}

func TestDemo_SubmitNeedsPro(t *testing.T) {
	_, err := execute(t, "--demo", "locations", "submit", "--name", "New DZ", "--country", "NL")
	require.ErrorIs(t, err, resources.ErrProRequired)
}

func TestDemo_Logout(t *testing.T) {
	out, err := execute(t, "--demo", "logout")
	require.NoError(t, err)
	require.Contains(t, out, "signed out")
}

func TestDemo_OIDCWithoutIssuer(t *testing.T) {
	_, err := execute(t, "--demo", "login", "--oidc")
	require.ErrorContains(t, err, "no OpenID provider configured")
}

func TestGroupCommandPrintsHelp(t *testing.T) {
	out, err := execute(t, "logbook")
	require.NoError(t, err)
	require.Contains(t, out, "Log a jump")
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("DROPZONE_API_KEY", "")
	_, err := execute(t, "--store", "bogus", "status")
	require.Error(t, err)
}
