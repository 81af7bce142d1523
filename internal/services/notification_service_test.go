package services

import (
	"context"
	"testing"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendValidatesTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name string
		req  models.SendNotificationRequest
		want *apperr.Error
	}{
		{"no target", models.SendNotificationRequest{Title: "hi"}, apperr.ErrInvalidTarget},
		{"both targets", models.SendNotificationRequest{Title: "hi", Target: models.Target{RecipientID: "u1", RecipientRole: models.RoleLab}}, apperr.ErrInvalidTarget},
		{"no title", models.SendNotificationRequest{Target: models.Target{RecipientID: "u1"}}, apperr.ErrInvalidField},
		{"bad priority", models.SendNotificationRequest{Title: "hi", Target: models.Target{RecipientID: "u1"}, Priority: "urgent"}, apperr.ErrInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.notifications.Send(ctx, tt.req, admin)
			require.ErrorIs(t, err, tt.want)
		})
	}

	n, err := f.notifications.Send(ctx, models.SendNotificationRequest{Title: "hi", Target: models.Target{RecipientID: "u1"}}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.NotifyGeneral, n.Type)
	assert.Equal(t, models.SeverityLow, n.Priority)
	assert.False(t, n.Read)
}

func TestSendTrimsTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	n, err := f.notifications.Send(ctx, models.SendNotificationRequest{
		Title:  "shift change",
		Target: models.Target{RecipientID: " ", RecipientRole: models.RoleSupervisor},
	}, admin)
	require.NoError(t, err)
	assert.Empty(t, n.RecipientID)
	assert.Equal(t, models.RoleSupervisor, n.RecipientRole)

	got, err := f.notifications.ListForActor(ctx, supervisor, false, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, n.ID, got[0].ID)

	_, err = f.notifications.Send(ctx, models.SendNotificationRequest{Title: "x", Target: models.Target{RecipientID: " ", RecipientRole: "\t"}}, admin)
	require.ErrorIs(t, err, apperr.ErrInvalidTarget)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n, err := f.notifications.Send(ctx, models.SendNotificationRequest{Title: "calibrate", Target: models.Target{RecipientID: lab.ID}}, admin)
	require.NoError(t, err)

	_, err = f.notifications.MarkRead(ctx, n.ID, worker)
	require.ErrorIs(t, err, apperr.ErrNotRecipient)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	once, err := f.notifications.MarkRead(ctx, n.ID, lab)
	require.NoError(t, err)
	assert.True(t, once.Read)
	require.NotNil(t, once.ReadAt)
	assert.Equal(t, lab.ID, once.ReadBy)

	twice, err := f.notifications.MarkRead(ctx, n.ID, lab)
	require.NoError(t, err)
	assert.Equal(t, once, twice)

	reads, err := f.audit.List(ctx, models.AuditFilter{Action: string(models.AuditMarkRead)})
	require.NoError(t, err)
	assert.Len(t, reads, 1)

	count, err := f.notifications.UnreadCount(ctx, lab)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRoleTargetedNotifications(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n, err := f.notifications.Send(ctx, models.SendNotificationRequest{Title: "shift change", Target: models.Target{RecipientRole: models.RoleWorker}}, admin)
	require.NoError(t, err)
	_, err = f.notifications.Send(ctx, models.SendNotificationRequest{Title: "personal", Target: models.Target{RecipientID: worker.ID}}, admin)
	require.NoError(t, err)
	_, err = f.notifications.Send(ctx, models.SendNotificationRequest{Title: "for the lab", Target: models.Target{RecipientRole: models.RoleLab}}, admin)
	require.NoError(t, err)

	count, err := f.notifications.UnreadCount(ctx, worker)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	list, err := f.notifications.ListForActor(ctx, worker, false, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "personal", list[0].Title)

	otherWorker := models.Actor{ID: "u-worker-2", Role: models.RoleWorker}
	_, err = f.notifications.MarkRead(ctx, n.ID, otherWorker)
	require.NoError(t, err)

	unread, err := f.notifications.ListForActor(ctx, worker, true, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "personal", unread[0].Title)

	_, err = f.notifications.MarkRead(ctx, "missing", worker)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
