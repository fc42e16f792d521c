package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"rewards-bot-backend/internal/features/winner/models"
	"rewards-bot-backend/internal/features/winner/repository/sqlite"
)

func newService(t *testing.T) (WinnerService, *sqlite.Repository) {
	t.Helper()
	repo, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	return New(repo), repo
}

func upsert(t *testing.T, repo *sqlite.Repository, username string, patch models.WinnerPatch) {
	t.Helper()
	require.NoError(t, repo.Upsert(context.Background(), username, patch))
}

func strPtr(s string) *string { return &s }

func TestLink(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	upsert(t, repo, "alice", models.WinnerPatch{})

	rec, err := svc.Link(ctx, 100, " alice ")
	require.NoError(t, err)
	require.Equal(t, "alice", rec.Username)
	require.Equal(t, int64(100), *rec.TelegramID)

	// Re-linking moves the binding to the new account.
	rec, err = svc.Link(ctx, 200, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(200), *rec.TelegramID)

	_, err = svc.Link(ctx, 100, "nobody")
	require.ErrorIs(t, err, ErrNotWhitelisted)

	for _, bad := range []string{"", "ab", "has space", "wa y", "x@y.com!"} {
		_, err := svc.Link(ctx, 100, bad)
		require.ErrorIs(t, err, ErrInvalidUsernameFormat, "username %q", bad)
	}
}

func TestStatusAndLookup(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	tg := int64(100)
	upsert(t, repo, "alice", models.WinnerPatch{TelegramID: &tg})

	rec, err := svc.Status(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, "alice", rec.Username)

	_, err = svc.Status(ctx, 999)
	require.ErrorIs(t, err, ErrNotWhitelisted)

	rec, err = svc.Lookup(ctx, "ALICE")
	require.NoError(t, err)
	require.Equal(t, "alice", rec.Username)

	_, err = svc.Lookup(ctx, "nobody")
	require.ErrorIs(t, err, ErrNotWhitelisted)
}

func TestUseWVC(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	tg := int64(100)
	upsert(t, repo, "alice", models.WinnerPatch{TelegramID: &tg, WvcCode: strPtr("WVC-abc")})

	require.ErrorIs(t, svc.UseWVC(ctx, 100, "wvc-ABC"), ErrWvcInvalid)
	require.NoError(t, svc.UseWVC(ctx, 100, "WVC-abc"))

	// One-shot: even the correct code fails once consumed.
	require.ErrorIs(t, svc.UseWVC(ctx, 100, "WVC-abc"), ErrWvcAlreadyUsed)

	rec, err := svc.Status(ctx, 100)
	require.NoError(t, err)
	require.True(t, rec.WvcUsed)
	require.False(t, rec.NeedsWVC())
}

func TestUseWVCWithoutAssignment(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	tg := int64(100)
	upsert(t, repo, "alice", models.WinnerPatch{TelegramID: &tg})

	require.ErrorIs(t, svc.UseWVC(ctx, 100, "anything"), ErrNoWvcAssigned)
	require.ErrorIs(t, svc.UseWVC(ctx, 999, "anything"), ErrNotWhitelisted)
}

func TestRecordProof(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	ok, err := svc.HasProof(ctx, 100)
	require.NoError(t, err)
	require.False(t, ok)

	digest, err := svc.RecordProof(ctx, 100, "file-1", []byte("screenshot bytes"))
	require.NoError(t, err)
	require.Len(t, digest, 64)

	ok, err = svc.HasProof(ctx, 100)
	require.NoError(t, err)
	require.True(t, ok)

	// Same content hashes the same; the log still keeps both entries.
	again, err := svc.RecordProof(ctx, 100, "file-2", []byte("screenshot bytes"))
	require.NoError(t, err)
	require.Equal(t, digest, again)
}

func TestAdminLinkAndExport(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	upsert(t, repo, "alice", models.WinnerPatch{})
	upsert(t, repo, "bob", models.WinnerPatch{})

	require.NoError(t, svc.AdminLink(ctx, "bob", 300))
	require.ErrorIs(t, svc.AdminLink(ctx, "nobody", 300), ErrNotWhitelisted)

	all, err := svc.Export(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "alice", all[0].Username)
	require.Equal(t, "bob", all[1].Username)
}
