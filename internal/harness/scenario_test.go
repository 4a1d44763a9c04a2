package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: smallest valid scenario
accounts: [alice]
tokens:
  - {symbol: WETH, decimals: 18, supply: "1e18"}
steps:
  - advance: 1
`

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "dca_two_users.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "dca_two_users", s.Name)
	assert.Equal(t, int64(1_700_000_000), s.StartTime)
	assert.Equal(t, []string{"alice", "bob"}, s.Accounts)
	require.Len(t, s.Tokens, 2)
	require.Len(t, s.Pools, 1)
	require.NotNil(t, s.Steps[0].Register)
	assert.Equal(t, int64(10000), s.Steps[0].Register.Interval)
	require.NotNil(t, s.Steps[3].Check.ExpectNeeded)
	assert.True(t, *s.Steps[3].Check.ExpectNeeded)
	assert.Equal(t, int64(10000), s.Steps[6].Advance)
	assert.Equal(t, "NOT_FOUND", s.Steps[9].Delete.ExpectError)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: minimalScenario + "stepz: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			yaml: "description: x\ntokens: [{symbol: A, supply: '1'}]\nsteps: [{advance: 1}]\n",
			want: "name is required",
		},
		{
			name: "no tokens",
			yaml: "name: x\ndescription: x\nsteps: [{advance: 1}]\n",
			want: "tokens list is required",
		},
		{
			name: "no steps",
			yaml: "name: x\ndescription: x\ntokens: [{symbol: A, supply: '1'}]\n",
			want: "steps list is required",
		},
		{
			name: "bad supply",
			yaml: "name: x\ndescription: x\ntokens: [{symbol: A, supply: 'lots'}]\nsteps: [{advance: 1}]\n",
			want: "tokens[0]: supply",
		},
		{
			name: "reserved account",
			yaml: "name: x\ndescription: x\naccounts: [trickle]\ntokens: [{symbol: A, supply: '1'}]\nsteps: [{advance: 1}]\n",
			want: "invalid account name",
		},
		{
			name: "unknown token in step",
			yaml: "name: x\ndescription: x\naccounts: [alice]\ntokens: [{symbol: A, supply: '1'}]\nsteps: [{approve: {owner: alice, token: B, amount: '1'}}]\n",
			want: `unknown token "B"`,
		},
		{
			name: "unknown account in step",
			yaml: "name: x\ndescription: x\naccounts: [alice]\ntokens: [{symbol: A, supply: '1'}, {symbol: B, supply: '1'}]\nsteps: [{register: {owner: bob, sell: A, buy: B, amount: '1', interval: 60}}]\n",
			want: `unknown account "bob"`,
		},
		{
			name: "two actions in one step",
			yaml: "name: x\ndescription: x\ntokens: [{symbol: A, supply: '1'}]\nsteps: [{advance: 1, check: {}}]\n",
			want: "exactly one action is required, got 2",
		},
		{
			name: "empty step",
			yaml: "name: x\ndescription: x\ntokens: [{symbol: A, supply: '1'}]\nsteps: [{}]\n",
			want: "exactly one action is required, got 0",
		},
		{
			name: "unknown assertion",
			yaml: minimalScenario + "assertions: [{type: vibes}]\n",
			want: `unknown assertion type "vibes"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1500", "1500"},
		{"1e18", "1000000000000000000"},
		{"15e17", "1500000000000000000"},
		{" 2E3 ", "2000"},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String(), tt.in)
	}

	for _, bad := range []string{"", "-1", "1.5", "1e", "1e-3", "abc", "1e99"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
}
