package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcjurado/outreach/internal/auth"
)

const testYAML = `
delivery:
  sender: sales@acme.test
  recipient: cto@prospect.test
  transport: log
  sendgrid_api_key: SG.very-secret
auth:
  enabled: true
  jwt_secret: test-signing-secret
  issuer: outreach-test
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "outreach.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testYAML), 0o600))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	out := execute(t, "config", "show", "--config", writeConfig(t))
	assert.Contains(t, out, "sales@acme.test")
	assert.NotContains(t, out, "SG.very-secret")
	assert.NotContains(t, out, "test-signing-secret")
}

func TestTokenIssueValidatesWithConfiguredSecret(t *testing.T) {
	out := execute(t, "token", "issue", "--config", writeConfig(t), "--subject", "ops", "--scope", auth.ScopeRunsRead)
	token := strings.TrimSpace(out)
	require.NotEmpty(t, token)

	jwtm, err := auth.NewJWTManager("test-signing-secret", "outreach-test", 0)
	require.NoError(t, err)
	p, err := jwtm.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", p.Subject)
	assert.True(t, p.HasScope(auth.ScopeRunsRead))
	assert.False(t, p.HasScope(auth.ScopeCampaignsWrite))
}

func TestToolsListFromConfig(t *testing.T) {
	out := execute(t, "tools", "list", "--config", writeConfig(t))
	assert.Contains(t, out, "sales_agent_professional")
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"campaign", "run"},
		{"reply", "send"},
		{"deliver"},
		{"runs", "get"},
		{"tools", "invoke"},
		{"replay"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestReplayMissingHistoryFails(t *testing.T) {
	rootCmd.SetArgs([]string{"replay", filepath.Join(t.TempDir(), "missing.json")})
	rootCmd.SetOut(&bytes.Buffer{})
	assert.Error(t, rootCmd.Execute())
}
