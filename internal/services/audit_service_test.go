package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/models"
	"barrel-backend/internal/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditChainLinksEveryMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b, _, r := f.completedRepair(t, "C1")
	_, err := f.repairs.Approve(ctx, r.ID, supervisor)
	require.NoError(t, err)

	res, err := f.audit.Verify(ctx)
	require.NoError(t, err)
	assert.Greater(t, res.Entries, int64(5))

	entries, err := f.audit.List(ctx, models.AuditFilter{Ascending: true, Limit: 500})
	require.NoError(t, err)
	require.Len(t, entries, int(res.Entries))
	assert.Equal(t, GenesisHash, entries[0].PrevHash)
	for i := 1; i < len(entries); i++ {
		assert.Equal(t, entries[i-1].Hash, entries[i].PrevHash)
		assert.Equal(t, entries[i-1].Seq+1, entries[i].Seq)
	}
	assert.Equal(t, res.LastHash, entries[len(entries)-1].Hash)

	history, err := f.audit.ListByEntity(ctx, models.EntityBarrel, b.ID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	first := history[len(history)-1]
	assert.Equal(t, models.AuditCreate, first.Action)
	assert.Equal(t, http.StatusCreated, first.ResponseStatus)
	assert.Equal(t, lab.ID, first.UserID)
	assert.Equal(t, "C1", first.Details["code"])
}

func TestAuditVerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	f := newFixtureWithStore(t, store)
	f.register(t, "C1", 200)
	f.register(t, "C2", 200)

	_, err := f.audit.Verify(ctx)
	require.NoError(t, err)

	tampered := newFixtureWithStore(t, tamperStore{Store: store, seq: 1})
	_, err = tampered.audit.Verify(ctx)
	require.ErrorIs(t, err, apperr.ErrAuditChainBroken)
	assert.Contains(t, err.Error(), "entry 1")
}

func TestComputeHashIsStable(t *testing.T) {
	ts := time.Date(2025, 3, 1, 8, 0, 0, 123456789, time.FixedZone("IST", 19800))
	entry := &models.AuditLog{
		ID:         "a1",
		Seq:        1,
		Action:     models.AuditCreate,
		EntityType: models.EntityBarrel,
		EntityID:   "b1",
		Details:    map[string]any{"capacity": float64(200)},
		Timestamp:  ts.UTC().Truncate(time.Microsecond),
		PrevHash:   GenesisHash,
	}
	h1, err := ComputeHash(entry)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	entry.Hash = "ignored"
	entry.Timestamp = entry.Timestamp.In(time.FixedZone("IST", 19800))
	h2, err := ComputeHash(entry)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	entry.Details["capacity"] = float64(201)
	h3, err := ComputeHash(entry)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestRecordRejection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.audit.RecordRejection(ctx, worker, Rejection{
		Operation: "repair.approve",
		EntityID:  "r1",
		Status:    http.StatusForbidden,
		Code:      apperr.ErrForbidden.Code,
		Message:   "role worker may not approve",
	})
	require.NoError(t, err)

	entries, err := f.audit.List(ctx, models.AuditFilter{UserID: worker.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditDenied, entries[0].Action)
	assert.Equal(t, "request", entries[0].EntityType)
	assert.Equal(t, http.StatusForbidden, entries[0].ResponseStatus)
	assert.Equal(t, "E_FORBIDDEN", entries[0].Details["code"])
}

func TestAuditLogIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.register(t, "C1", 200)

	before, err := f.audit.Range(ctx, 0, 0)
	require.NoError(t, err)

	_, err = f.registry.AdjustVolume(ctx, b.ID, models.AdjustVolumeRequest{Delta: 10}, lab)
	require.NoError(t, err)
	_, err = f.registry.AdjustVolume(ctx, b.ID, models.AdjustVolumeRequest{Delta: 1000}, lab)
	require.Error(t, err)

	after, err := f.audit.Range(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, after, len(before)+1)
	assert.Equal(t, before, after[:len(before)])
}
