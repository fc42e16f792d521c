package importer

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rewards-bot-backend/internal/features/winner/repository/sqlite"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		line string
		want rune
	}{
		{"username;wallet;xp", ';'},
		{"username,wallet,xp", ','},
		{"username\twallet\txp", '\t'},
		{"username|wallet|xp", '|'},
		// Tie goes to semicolon.
		{"a;b,c;d,e", ';'},
		{"no delimiters here", ','},
		{"", ','},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectDelimiter(tt.line), "line %q", tt.line)
	}
}

func TestParseSemicolonWithAliases(t *testing.T) {
	csv := "Position on leadborad;Username;XP;Binance Smart Chain Address;WVC\n" +
		"#1;Alice;12,345;0xAbCdEf1234567890abcdef1234567890ABCDEF12;WVC-a1\n" +
		";;;;\n" +
		"2nd;bob;900;;\n"

	rows, err := Parse(strings.NewReader(csv), Options{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	alice := rows[0]
	assert.Equal(t, "alice", alice.Username)
	require.NotNil(t, alice.Rank)
	assert.Equal(t, 1, *alice.Rank)
	require.NotNil(t, alice.XP)
	assert.Equal(t, 12, *alice.XP)
	require.NotNil(t, alice.Wallet)
	assert.Equal(t, "0xabcdef1234567890abcdef1234567890abcdef12", *alice.Wallet)
	require.NotNil(t, alice.Wvc)
	assert.Equal(t, "WVC-a1", *alice.Wvc)

	bob := rows[1]
	assert.Equal(t, "bob", bob.Username)
	require.NotNil(t, bob.Rank)
	assert.Equal(t, 2, *bob.Rank)
	assert.Nil(t, bob.Wallet)
	assert.Nil(t, bob.Wvc)
}

func TestParseCommaAndBOM(t *testing.T) {
	csv := "\ufeffusername,rank,wallet\nalice,3,0x1111111111111111111111111111111111111111\n"
	rows, err := Parse(strings.NewReader(csv), Options{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0].Username)
	require.NotNil(t, rows[0].Rank)
	assert.Equal(t, 3, *rows[0].Rank)
	require.NotNil(t, rows[0].Wallet)
}

func TestParseHeaderColons(t *testing.T) {
	csv := "Username:;Wallet:\nalice;0x1111111111111111111111111111111111111111\n"
	rows, err := Parse(strings.NewReader(csv), Options{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Wallet)
}

func TestParseExplicitDelimiterOverride(t *testing.T) {
	// One semicolon in a comma file would fool nothing, but an explicit
	// delimiter always wins over detection.
	csv := "username|wallet\nalice|0x1111111111111111111111111111111111111111\n"
	rows, err := Parse(strings.NewReader(csv), Options{Delimiter: '|'})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestParseInvalidWalletDropped(t *testing.T) {
	csv := "username;wallet\nalice;not-a-wallet\n"
	rows, err := Parse(strings.NewReader(csv), Options{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Wallet)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader(""), Options{})
	require.ErrorIs(t, err, ErrNoHeader)

	_, err = Parse(strings.NewReader("   \n  "), Options{})
	require.ErrorIs(t, err, ErrNoHeader)

	_, err = Parse(strings.NewReader("rank;wallet\n1;0xdead\n"), Options{})
	require.ErrorIs(t, err, ErrNoUsernameColumn)
}

func TestImportIntoUpserts(t *testing.T) {
	ctx := context.Background()
	repo, err := sqlite.Open(":memory:")
	require.NoError(t, err)

	first := "username;xp;wallet;wvc\nalice;100;0x1111111111111111111111111111111111111111;WVC-1\n"
	rows, err := Parse(strings.NewReader(first), Options{})
	require.NoError(t, err)
	n, err := ImportInto(ctx, repo, rows)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rec, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 100, *rec.XP)
	require.Equal(t, "WVC-1", *rec.WvcCode)

	// Re-import with a sparse file: absent columns keep their stored values.
	second := "username;xp\nalice;250\n"
	rows, err = Parse(strings.NewReader(second), Options{})
	require.NoError(t, err)
	_, err = ImportInto(ctx, repo, rows)
	require.NoError(t, err)

	rec, err = repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 250, *rec.XP)
	require.Equal(t, "0x1111111111111111111111111111111111111111", *rec.Wallet)
	require.Equal(t, "WVC-1", *rec.WvcCode)
}

func TestIndexReload(t *testing.T) {
	ix := NewIndex()
	_, ok := ix.Get("alice")
	require.False(t, ok)
	require.Equal(t, 0, ix.Len())

	dir := t.TempDir()
	path := dir + "/winners.csv"
	writeFile(t, path, "username;xp\nAlice;10\nbob;20\n")

	n, err := ix.Reload(path, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, path, ix.Source())

	row, ok := ix.Get("ALICE")
	require.True(t, ok)
	require.Equal(t, "alice", row.Username)

	// A broken file keeps the previous snapshot.
	writeFile(t, path, "")
	_, err = ix.Reload(path, Options{})
	require.Error(t, err)
	require.Equal(t, 2, ix.Len())
}
