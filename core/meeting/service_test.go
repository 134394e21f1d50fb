package meeting_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redinnovafp/backend/core/meeting"
	"github.com/redinnovafp/backend/core/message"
	"github.com/redinnovafp/backend/core/settings"
	"github.com/redinnovafp/backend/core/user"
	emailsvc "github.com/redinnovafp/backend/services/email"
	inmemdb "github.com/redinnovafp/backend/storage/database/inmem"
	testutil "github.com/redinnovafp/backend/tests"
)

type fixture struct {
	svc       *meeting.Service
	msgs      *message.Service
	organizer user.User
	guest     user.User
	ctx       context.Context // authenticated as organizer
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	emailsvc.ClearSentMessages()

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	organizer := testutil.CreateUser(t, usrRepo, "Olga", "olga", "olga@test.es", "", []string{user.RoleGeneralCoordinator}, true)
	guest := testutil.CreateUser(t, usrRepo, "Iker", "iker", "iker@test.es", "", []string{user.RoleManager}, true)

	msgs := message.NewService(inmemdb.NewMessageRepository(db))
	dispatcher := meeting.NewDispatcher(msgs, emailsvc.NewConsoleServiceMock(conf, logger), logger, time.UTC)
	svc := meeting.NewServiceMock(inmemdb.NewMeetingRepository(db), user.NewService(usrRepo), dispatcher, settings.Static(settings.Defaults()), logger)
	return fixture{
		svc:       svc,
		msgs:      msgs,
		organizer: organizer,
		guest:     guest,
		ctx:       user.NewContext(context.Background(), organizer),
	}
}

func draft(start time.Time, participants ...string) meeting.NewMeeting {
	return meeting.NewMeeting{
		Title:        "Coordinación mensual",
		Type:         meeting.TypeCoordination,
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
		Participants: participants,
	}
}

func TestService_Schedule(t *testing.T) {
	f := setup(t)
	start := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	_, _, err := f.svc.Schedule(context.Background(), draft(start), nil)
	assert.ErrorIs(t, err, meeting.ErrUnauthenticated)

	end := time.Date(2030, 1, 3, 0, 0, 0, 0, time.UTC)
	base, instances, err := f.svc.Schedule(f.ctx, draft(start, f.guest.ID, "ghost"), &meeting.Recurrence{Type: meeting.RecurrenceDaily, Interval: 1, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, meeting.StatusScheduled, base.Status)
	assert.Equal(t, f.organizer.ID, base.Organizer)
	require.Len(t, instances, 2)
	assert.Equal(t, start.AddDate(0, 0, 2), instances[1].StartTime)

	// unresolvable invitees are recorded but not notified
	invs, err := f.svc.Invitations(f.ctx, base.ID)
	require.NoError(t, err)
	assert.Len(t, invs, 2)
	for _, inv := range invs {
		assert.Equal(t, meeting.InvitationPending, inv.Status)
	}
	assert.Len(t, emailsvc.Sent(), 1)
	inbox, err := f.msgs.Inbox(f.ctx, f.guest.ID)
	require.NoError(t, err)
	assert.Len(t, inbox, 1)

	// instances carry no invitations
	invs, err = f.svc.Invitations(f.ctx, instances[0].ID)
	require.NoError(t, err)
	assert.Empty(t, invs)
}

func TestService_lifecycle(t *testing.T) {
	f := setup(t)
	m, err := f.svc.Create(f.ctx, draft(time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC), f.guest.ID))
	require.NoError(t, err)

	url, err := f.svc.Start(f.ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, settings.DefaultMeetingServerURL+m.ID, url)

	again, err := f.svc.Start(f.ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, url, again)

	_, err = f.svc.Cancel(f.ctx, m.ID, "")
	assert.ErrorIs(t, err, meeting.ErrInvalidTransition)

	require.NoError(t, f.svc.End(f.ctx, m.ID))
	assert.ErrorIs(t, f.svc.End(f.ctx, m.ID), meeting.ErrInvalidTransition)
	_, err = f.svc.Start(f.ctx, m.ID)
	assert.ErrorIs(t, err, meeting.ErrInvalidTransition)

	got, err := f.svc.Get(f.ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, meeting.StatusCompleted, got.Status)

	title := "Otra"
	_, err = f.svc.Update(f.ctx, m.ID, meeting.UpdateMeeting{Title: &title})
	assert.ErrorIs(t, err, meeting.ErrInvalidTransition)

	_, err = f.svc.SendInvitations(f.ctx, m.ID, []string{f.guest.ID})
	require.NoError(t, err)
	emailsvc.ClearSentMessages()

	require.NoError(t, f.svc.Delete(f.ctx, m.ID))
	sent := emailsvc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Cancelación de Reunión: "+m.Title, sent[0].Subject)
	assert.Equal(t, f.guest.Email, sent[0].To[0].Address)

	_, err = f.svc.Get(f.ctx, m.ID)
	assert.ErrorIs(t, err, meeting.ErrNotFound)
	invs, err := f.svc.Invitations(f.ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, invs)

	t.Run("unknown meeting", func(t *testing.T) {
		assert.NoError(t, f.svc.Delete(f.ctx, "unknown"))
		assert.NoError(t, f.svc.End(f.ctx, "unknown"))
		_, err := f.svc.Start(f.ctx, "unknown")
		assert.ErrorIs(t, err, meeting.ErrNotFound)
	})
}

func TestService_Cancel(t *testing.T) {
	f := setup(t)
	m, err := f.svc.Create(f.ctx, draft(time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC), f.guest.ID))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(f.ctx, m.ID, "  Festivo ")
	require.NoError(t, err)
	assert.Equal(t, meeting.StatusCancelled, cancelled.Status)
	assert.Equal(t, "Festivo", cancelled.CancelReason)

	sent := emailsvc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Cancelación de Reunión: "+m.Title, sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "Festivo")

	_, err = f.svc.Remind(f.ctx, m.ID)
	assert.ErrorIs(t, err, meeting.ErrInvalidTransition)

	title := "Otra"
	_, err = f.svc.Update(f.ctx, m.ID, meeting.UpdateMeeting{Title: &title})
	assert.ErrorIs(t, err, meeting.ErrInvalidTransition)

	// participants of a cancelled meeting are not told twice
	require.NoError(t, f.svc.Delete(f.ctx, m.ID))
	assert.Len(t, emailsvc.Sent(), 1)
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	m, err := f.svc.Create(f.ctx, draft(time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC), f.guest.ID))
	require.NoError(t, err)

	agenda := meeting.UpdateMeeting{Agenda: []string{"Presupuesto"}}
	_, err = f.svc.Update(f.ctx, m.ID, agenda)
	require.NoError(t, err)
	assert.Empty(t, emailsvc.Sent(), "agenda changes are not announced")

	title := "Coordinación extraordinaria"
	updated, err := f.svc.Update(f.ctx, m.ID, meeting.UpdateMeeting{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, []string{"Presupuesto"}, updated.Agenda)

	sent := emailsvc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Actualización de Reunión: "+title, sent[0].Subject)

	_, err = f.svc.Update(f.ctx, "unknown", meeting.UpdateMeeting{Title: &title})
	assert.ErrorIs(t, err, meeting.ErrNotFound)
}

func TestService_invitations(t *testing.T) {
	f := setup(t)
	m, err := f.svc.Create(f.ctx, draft(time.Now().Add(time.Hour)))
	require.NoError(t, err)

	invs, err := f.svc.SendInvitations(f.ctx, m.ID, []string{f.guest.ID})
	require.NoError(t, err)
	require.Len(t, invs, 1)

	pending, err := f.svc.PendingInvitations(f.ctx, f.guest.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	mine, err := f.svc.MeetingsByUser(f.ctx, f.guest.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)

	inv, err := f.svc.Respond(f.ctx, invs[0].ID, meeting.InvitationResponse{Accept: true, Message: " Allí estaré "})
	require.NoError(t, err)
	assert.Equal(t, meeting.InvitationAccepted, inv.Status)
	assert.Equal(t, "Allí estaré", inv.ResponseMessage)
	assert.NotNil(t, inv.RespondedAt)

	// accepted invitations make the meeting show up even when not a participant
	mine, err = f.svc.MeetingsByUser(f.ctx, f.guest.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, m.ID, mine[0].ID)

	pending, err = f.svc.PendingInvitations(f.ctx, f.guest.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	inv, err = f.svc.Respond(f.ctx, invs[0].ID, meeting.InvitationResponse{})
	require.NoError(t, err)
	assert.Equal(t, meeting.InvitationDeclined, inv.Status)

	inv, err = f.svc.Respond(f.ctx, "unknown", meeting.InvitationResponse{Accept: true})
	require.NoError(t, err)
	assert.Empty(t, inv.ID)

	_, err = f.svc.GetInvitation(f.ctx, "unknown")
	assert.ErrorIs(t, err, meeting.ErrInvitationNotFound)

	_, err = f.svc.SendInvitations(f.ctx, "unknown", []string{f.guest.ID})
	assert.ErrorIs(t, err, meeting.ErrNotFound)
}

func TestService_SendInvitations_rounds(t *testing.T) {
	f := setup(t)
	m, err := f.svc.Create(f.ctx, draft(time.Now().Add(time.Hour), f.guest.ID))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = f.svc.SendInvitations(f.ctx, m.ID, []string{f.guest.ID})
		require.NoError(t, err)
	}

	// each round records its own invitation
	invs, err := f.svc.Invitations(f.ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, invs, 2)
	assert.NotEqual(t, invs[0].ID, invs[1].ID)
	for _, inv := range invs {
		assert.Equal(t, f.guest.ID, inv.UserID)
	}
	assert.Len(t, emailsvc.Sent(), 2)

	pending, err := f.svc.PendingInvitations(f.ctx, f.guest.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, f.svc.Delete(f.ctx, m.ID))
	invs, err = f.svc.Invitations(f.ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, invs)
	pending, err = f.svc.PendingInvitations(f.ctx, f.guest.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, f.svc.Delete(f.ctx, m.ID))
	assert.Len(t, emailsvc.Sent(), 3, "deleting again notifies nobody")
}

func TestService_SendReminders(t *testing.T) {
	f := setup(t)
	now := time.Now().UTC()

	soon, err := f.svc.Create(f.ctx, draft(now.Add(10*time.Minute), f.guest.ID, f.organizer.ID))
	require.NoError(t, err)
	_, err = f.svc.Create(f.ctx, draft(now.Add(3*time.Hour), f.guest.ID))
	require.NoError(t, err)
	_, err = f.svc.Create(f.ctx, draft(now.Add(-5*time.Minute), f.guest.ID))
	require.NoError(t, err)

	n, err := f.svc.SendReminders(f.ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sent := emailsvc.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Recordatorio: "+soon.Title, sent[0].Subject)

	upcoming, err := f.svc.UpcomingMeetings(f.ctx)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, soon.ID, upcoming[0].ID)
}
