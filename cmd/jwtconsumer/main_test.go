package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-jwt/internal/testutil"
)

const cliSecret = "0123456789abcdef0123456789abcdef"

const cliConfig = `consumers:
  - id: orders
    signature_algorithm: HS256
    trusted_issuers: "https://auth.test"
    audiences: ["orders-api"]
    shared_key: "0123456789abcdef0123456789abcdef"
log:
  level: error
`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func issue(t *testing.T, extra ...string) string {
	t.Helper()
	secret := testutil.TempFile(t, "secret.txt", cliSecret+"\n")
	args := append([]string{"issue", "--config", testutil.TempFile(t, "empty.yaml", "log:\n  level: error\n"),
		"--secret-file", secret, "--iss", "https://auth.test", "--sub", "alice"}, extra...)
	out, err := execute(t, "", args...)
	require.NoError(t, err)
	return strings.TrimSpace(out)
}

func TestIssueThenValidate(t *testing.T) {
	t.Parallel()
	raw := issue(t, "--aud", "orders-api", "--claim", "role=admin")
	cfg := testutil.TempFile(t, "consumers.yaml", cliConfig)

	out, err := execute(t, "", "validate", "--config", cfg, "--consumer", "orders", raw)
	require.NoError(t, err)
	var claims map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &claims))
	assert.Equal(t, "alice", claims["sub"])
	assert.Equal(t, "admin", claims["role"])

	out, err = execute(t, raw+"\n", "validate", "--config", cfg, "--consumer", "orders", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"alice"`)
}

func TestValidate_Rejected(t *testing.T) {
	t.Parallel()
	raw := issue(t, "--aud", "billing-api")
	cfg := testutil.TempFile(t, "consumers.yaml", cliConfig)

	_, err := execute(t, "", "validate", "--config", cfg, "--consumer", "orders", raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_032")
}

func TestValidate_RequiresConsumerFlag(t *testing.T) {
	t.Parallel()
	_, err := execute(t, "", "validate", "--config", testutil.TempFile(t, "c.yaml", cliConfig), "a.b.c")
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	t.Parallel()
	raw := issue(t, "--kid", "k1")

	out, err := execute(t, "", "parse", "--config", testutil.TempFile(t, "c.yaml", cliConfig), raw)
	require.NoError(t, err)
	var p struct {
		Header map[string]any `json:"header"`
		Claims map[string]any `json:"claims"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "HS256", p.Header["alg"])
	assert.Equal(t, "k1", p.Header["kid"])
	assert.Equal(t, "https://auth.test", p.Claims["iss"])

	_, err = execute(t, "", "parse", "--config", testutil.TempFile(t, "c.yaml", cliConfig), "garbage")
	assert.Error(t, err)
}

func TestIssue_Errors(t *testing.T) {
	t.Parallel()
	cfg := testutil.TempFile(t, "c.yaml", cliConfig)
	tests := map[string][]string{
		"unknown algorithm":  {"issue", "--config", cfg, "--alg", "XX1"},
		"hmac without key":   {"issue", "--config", cfg, "--alg", "HS256"},
		"rsa without key":    {"issue", "--config", cfg, "--alg", "RS256"},
		"none not signable":  {"issue", "--config", cfg, "--alg", "none"},
		"unreadable keyfile": {"issue", "--config", cfg, "--alg", "ES256", "--key-file", "/nonexistent/key.pem"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, "", args...)
			assert.Error(t, err)
		})
	}
}

func TestIssue_RSAKeyFile(t *testing.T) {
	t.Parallel()
	keyFile := testutil.TempFile(t, "signer.pem", testutil.PrivateKeyPEM(t, testutil.RSAKey(t)))

	out, err := execute(t, "", "issue", "--config", testutil.TempFile(t, "c.yaml", cliConfig),
		"--alg", "RS256", "--key-file", keyFile, "--iss", "https://auth.test")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)
}

func TestRoot_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	_, err := execute(t, "", "parse", "--config", testutil.TempFile(t, "c.yaml", cliConfig), "--log-level", "loud", "a.b.c")
	assert.Error(t, err)
}
