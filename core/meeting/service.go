package meeting

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/settings"
	"github.com/redinnovafp/backend/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound           = errors.New("meeting not found")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrUnauthenticated    = errors.New("user not authenticated")
	ErrInvalidTransition  = errors.New("invalid meeting status transition")
	ErrMeetingsDisabled   = errors.New("meetings are disabled")
	ErrRoleNotAllowed     = errors.New("your role is not allowed to organize meetings")
)

type (
	// UserDirectory resolves user ids into users.
	UserDirectory interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Repository interface {
		CreateMeeting(ctx context.Context, m Meeting) (Meeting, error)
		GetMeetingByID(ctx context.Context, id string) (Meeting, error)
		QueryAllMeetings(ctx context.Context) ([]Meeting, error)
		UpdateMeeting(ctx context.Context, m Meeting) (Meeting, error)
		DeleteMeeting(ctx context.Context, id string) error

		CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error)
		GetInvitationByID(ctx context.Context, id string) (Invitation, error)
		QueryInvitations(ctx context.Context, filter InvitationFilter) ([]Invitation, error)
		UpdateInvitation(ctx context.Context, inv Invitation) (Invitation, error)
		DeleteInvitationsByMeeting(ctx context.Context, meetingID string) error
	}

	Service struct {
		mu       sync.Mutex // serializes mutations
		repo     Repository
		users    UserDirectory
		notifier *Dispatcher
		settings settings.Provider
		logger   core.Logger
		dispatch func(fn func())
	}
)

func NewService(repo Repository, users UserDirectory, notifier *Dispatcher, sp settings.Provider, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		notifier: notifier,
		settings: sp,
		logger:   logger,
		dispatch: func(fn func()) { go fn() },
	}
}

// notify runs fn out of band with a context detached from the caller's cancellation.
func (svc *Service) notify(ctx context.Context, fn func(ctx context.Context)) {
	detached := context.WithoutCancel(ctx)
	svc.dispatch(func() { fn(detached) })
}

// resolve returns the users of ids found in the directory, logging the missing ones.
func (svc *Service) resolve(ctx context.Context, ids []string) []user.User {
	users := make([]user.User, 0, len(ids))
	for _, id := range ids {
		usr, err := svc.users.GetByID(ctx, id)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("resolving user %s: %v", id, err), err)
			continue
		}
		users = append(users, usr)
	}
	return users
}

// Create stores nm as a scheduled meeting organized by the authenticated user.
func (svc *Service) Create(ctx context.Context, nm NewMeeting) (Meeting, error) {
	organizer, ok := user.FromContext(ctx)
	if !ok {
		return Meeting{}, ErrUnauthenticated
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.create(ctx, organizer, nm)
}

func (svc *Service) create(ctx context.Context, organizer user.User, nm NewMeeting) (Meeting, error) {
	now := NowFunc().UTC()
	m := Meeting{
		ID:           uuid.New().String(),
		Title:        nm.Title,
		Description:  nm.Description,
		Type:         nm.Type,
		StartTime:    nm.StartTime.UTC(),
		EndTime:      nm.EndTime.UTC(),
		Organizer:    organizer.ID,
		Participants: append([]string{}, nm.Participants...),
		Agenda:       append([]string{}, nm.Agenda...),
		Status:       StatusScheduled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m, err := svc.repo.CreateMeeting(ctx, m)
	if err != nil {
		return Meeting{}, errors.Wrap(err, "creating meeting")
	}
	return m, nil
}

// Schedule creates the meeting & its recurring instances then invites the participants to the first one.
func (svc *Service) Schedule(ctx context.Context, nm NewMeeting, rec *Recurrence) (Meeting, []Meeting, error) {
	organizer, ok := user.FromContext(ctx)
	if !ok {
		return Meeting{}, nil, ErrUnauthenticated
	}

	var drafts []NewMeeting
	if rec != nil {
		var err error
		if drafts, err = Expand(nm, *rec); err != nil {
			return Meeting{}, nil, err
		}
	}

	svc.mu.Lock()
	base, err := svc.create(ctx, organizer, nm)
	if err != nil {
		svc.mu.Unlock()
		return Meeting{}, nil, err
	}
	instances := make([]Meeting, 0, len(drafts))
	for _, draft := range drafts {
		instance, err := svc.create(ctx, organizer, draft)
		if err != nil {
			svc.mu.Unlock()
			return Meeting{}, nil, errors.Wrap(err, "creating recurring instance")
		}
		instances = append(instances, instance)
	}
	svc.mu.Unlock()

	if len(nm.Participants) > 0 {
		if _, err = svc.SendInvitations(ctx, base.ID, nm.Participants); err != nil {
			return Meeting{}, nil, errors.Wrap(err, "sending invitations")
		}
	}
	return base, instances, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Meeting, error) {
	return svc.repo.GetMeetingByID(ctx, id)
}

// List returns all the meetings ordered by start time.
func (svc *Service) List(ctx context.Context) ([]Meeting, error) {
	meetings, err := svc.repo.QueryAllMeetings(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying meetings")
	}
	sortByStart(meetings)
	return meetings, nil
}

// Update merges um into the meeting & notifies the participants of the notification-worthy changes.
// Completed & cancelled meetings cannot be updated.
func (svc *Service) Update(ctx context.Context, id string, um UpdateMeeting) (Meeting, error) {
	svc.mu.Lock()
	orig, err := svc.repo.GetMeetingByID(ctx, id)
	if err != nil {
		svc.mu.Unlock()
		return Meeting{}, err
	}
	if orig.Status.IsTerminal() {
		svc.mu.Unlock()
		return Meeting{}, ErrInvalidTransition
	}
	updated := um.apply(orig)
	updated.UpdatedAt = NowFunc().UTC()
	if updated, err = svc.repo.UpdateMeeting(ctx, updated); err != nil {
		svc.mu.Unlock()
		return Meeting{}, errors.Wrap(err, "updating meeting")
	}
	svc.mu.Unlock()

	if changes := Changes(orig, updated); len(changes) > 0 {
		svc.notify(ctx, func(ctx context.Context) {
			for _, participant := range svc.resolve(ctx, updated.Participants) {
				svc.notifier.Update(ctx, updated, participant, changes)
			}
		})
	}
	return updated, nil
}

// Delete notifies the participants of the cancellation then removes the meeting & its invitations.
// Participants of a cancelled meeting were already notified. Deleting an unknown meeting is a no-op.
func (svc *Service) Delete(ctx context.Context, id string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	m, err := svc.repo.GetMeetingByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "finding meeting")
	}

	if m.Status != StatusCancelled {
		svc.notify(ctx, func(ctx context.Context) {
			for _, participant := range svc.resolve(ctx, m.Participants) {
				svc.notifier.Cancellation(ctx, m, participant, "")
			}
		})
	}

	if err = svc.repo.DeleteInvitationsByMeeting(ctx, id); err != nil {
		return errors.Wrap(err, "deleting invitations")
	}
	if err = svc.repo.DeleteMeeting(ctx, id); err != nil {
		return errors.Wrap(err, "deleting meeting")
	}
	return nil
}

// Cancel marks a scheduled meeting as cancelled, keeping its record & invitations.
func (svc *Service) Cancel(ctx context.Context, id, reason string) (Meeting, error) {
	svc.mu.Lock()
	m, err := svc.repo.GetMeetingByID(ctx, id)
	if err != nil {
		svc.mu.Unlock()
		return Meeting{}, err
	}
	if m.Status != StatusScheduled {
		svc.mu.Unlock()
		return Meeting{}, ErrInvalidTransition
	}
	m.Status = StatusCancelled
	m.CancelReason = core.CleanString(reason)
	m.UpdatedAt = NowFunc().UTC()
	if m, err = svc.repo.UpdateMeeting(ctx, m); err != nil {
		svc.mu.Unlock()
		return Meeting{}, errors.Wrap(err, "cancelling meeting")
	}
	svc.mu.Unlock()

	svc.notify(ctx, func(ctx context.Context) {
		for _, participant := range svc.resolve(ctx, m.Participants) {
			svc.notifier.Cancellation(ctx, m, participant, m.CancelReason)
		}
	})
	return m, nil
}

// Start opens the meeting & returns its join URL.
func (svc *Service) Start(ctx context.Context, id string) (string, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	m, err := svc.repo.GetMeetingByID(ctx, id)
	if err != nil {
		return "", err
	}
	switch m.Status {
	case StatusInProgress:
		return m.URL, nil
	case StatusScheduled:
	default:
		return "", ErrInvalidTransition
	}

	m.URL = svc.settings.Current().MeetingServerURL() + m.ID
	m.Status = StatusInProgress
	m.UpdatedAt = NowFunc().UTC()
	if _, err = svc.repo.UpdateMeeting(ctx, m); err != nil {
		return "", errors.Wrap(err, "starting meeting")
	}
	return m.URL, nil
}

// End completes the meeting. Ending an unknown meeting is a no-op.
func (svc *Service) End(ctx context.Context, id string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	m, err := svc.repo.GetMeetingByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "finding meeting")
	}
	if m.Status.IsTerminal() {
		return ErrInvalidTransition
	}
	m.Status = StatusCompleted
	m.UpdatedAt = NowFunc().UTC()
	if _, err = svc.repo.UpdateMeeting(ctx, m); err != nil {
		return errors.Wrap(err, "ending meeting")
	}
	return nil
}

// SendInvitations records a pending invitation per user & notifies the ones found in the directory.
// Invitations are recorded even when the invitee or the organizer cannot be resolved.
func (svc *Service) SendInvitations(ctx context.Context, meetingID string, userIDs []string) ([]Invitation, error) {
	type pending struct {
		invitee user.User
	}

	svc.mu.Lock()
	m, err := svc.repo.GetMeetingByID(ctx, meetingID)
	if err != nil {
		svc.mu.Unlock()
		return nil, err
	}
	organizer, orgErr := svc.users.GetByID(ctx, m.Organizer)
	if orgErr != nil {
		svc.logger.Warn(fmt.Sprintf("meeting %s: resolving organizer %s: %v", m.ID, m.Organizer, orgErr), orgErr, core.LogFields{"meeting": m.ID})
	}

	invitations := make([]Invitation, 0, len(userIDs))
	toNotify := make([]pending, 0, len(userIDs))
	for _, uid := range userIDs {
		inv, err := svc.repo.CreateInvitation(ctx, Invitation{
			ID:        uuid.New().String(),
			MeetingID: m.ID,
			UserID:    uid,
			Status:    InvitationPending,
			SentAt:    NowFunc().UTC(),
		})
		if err != nil {
			svc.mu.Unlock()
			return nil, errors.Wrap(err, "creating invitation")
		}
		invitations = append(invitations, inv)

		invitee, err := svc.users.GetByID(ctx, uid)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("meeting %s: resolving invitee %s: %v", m.ID, uid, err), err, core.LogFields{"meeting": m.ID, "invitee": uid})
			continue
		}
		if orgErr == nil {
			toNotify = append(toNotify, pending{invitee: invitee})
		}
	}
	svc.mu.Unlock()

	if len(toNotify) > 0 {
		svc.notify(ctx, func(ctx context.Context) {
			for _, p := range toNotify {
				svc.notifier.Invitation(ctx, m, p.invitee, organizer)
			}
		})
	}
	return invitations, nil
}

// Respond records the invitee's answer. An invitation is never set back to pending.
// Responding to an unknown invitation is a no-op.
func (svc *Service) Respond(ctx context.Context, invitationID string, resp InvitationResponse) (Invitation, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	inv, err := svc.repo.GetInvitationByID(ctx, invitationID)
	if err != nil {
		if errors.Cause(err) == ErrInvitationNotFound {
			return Invitation{}, nil
		}
		return Invitation{}, errors.Wrap(err, "finding invitation")
	}
	inv.Status = InvitationDeclined
	if resp.Accept {
		inv.Status = InvitationAccepted
	}
	inv.ResponseMessage = core.CleanString(resp.Message)
	now := NowFunc().UTC()
	inv.RespondedAt = &now
	if inv, err = svc.repo.UpdateInvitation(ctx, inv); err != nil {
		return Invitation{}, errors.Wrap(err, "updating invitation")
	}
	return inv, nil
}

func (svc *Service) GetInvitation(ctx context.Context, id string) (Invitation, error) {
	return svc.repo.GetInvitationByID(ctx, id)
}

// Invitations returns the invitations of a meeting, oldest first.
func (svc *Service) Invitations(ctx context.Context, meetingID string) ([]Invitation, error) {
	invs, err := svc.repo.QueryInvitations(ctx, InvitationFilter{MeetingID: meetingID})
	if err != nil {
		return nil, errors.Wrap(err, "querying invitations")
	}
	sortBySent(invs)
	return invs, nil
}

// Remind sends a reminder to the participants of a scheduled meeting.
func (svc *Service) Remind(ctx context.Context, id string) ([]Delivery, error) {
	m, err := svc.repo.GetMeetingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != StatusScheduled {
		return nil, ErrInvalidTransition
	}
	return svc.remind(ctx, m), nil
}

func (svc *Service) remind(ctx context.Context, m Meeting) []Delivery {
	before := m.StartTime.Sub(NowFunc())
	if before < 0 {
		before = 0
	}
	participants := svc.resolve(ctx, m.Participants)
	deliveries := make([]Delivery, 0, len(participants))
	for _, participant := range participants {
		deliveries = append(deliveries, svc.notifier.Reminder(ctx, m, participant, before))
	}
	return deliveries
}

// SendReminders reminds the participants of every scheduled meeting starting within window.
// It returns the number of meetings reminded.
func (svc *Service) SendReminders(ctx context.Context, window time.Duration) (int, error) {
	meetings, err := svc.repo.QueryAllMeetings(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "querying meetings")
	}
	now := NowFunc()
	limit := now.Add(window)

	var count int
	for _, m := range meetings {
		if m.Status != StatusScheduled || !m.StartTime.After(now) || m.StartTime.After(limit) {
			continue
		}
		svc.remind(ctx, m)
		count++
	}
	return count, nil
}

// MeetingsByUser returns the meetings userID organizes, participates in or accepted an invitation to.
func (svc *Service) MeetingsByUser(ctx context.Context, userID string) ([]Meeting, error) {
	meetings, err := svc.repo.QueryAllMeetings(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying meetings")
	}
	accepted, err := svc.repo.QueryInvitations(ctx, InvitationFilter{UserID: userID, Status: InvitationAccepted})
	if err != nil {
		return nil, errors.Wrap(err, "querying invitations")
	}
	acceptedIDs := make(map[string]bool, len(accepted))
	for _, inv := range accepted {
		acceptedIDs[inv.MeetingID] = true
	}

	mine := make([]Meeting, 0)
	for _, m := range meetings {
		if m.Organizer == userID || m.HasParticipant(userID) || acceptedIDs[m.ID] {
			mine = append(mine, m)
		}
	}
	sortByStart(mine)
	return mine, nil
}

// PendingInvitations returns the invitations userID has not answered yet.
func (svc *Service) PendingInvitations(ctx context.Context, userID string) ([]Invitation, error) {
	invs, err := svc.repo.QueryInvitations(ctx, InvitationFilter{UserID: userID, Status: InvitationPending})
	if err != nil {
		return nil, errors.Wrap(err, "querying invitations")
	}
	sortBySent(invs)
	return invs, nil
}

// UpcomingMeetings returns the scheduled meetings starting after now, soonest first.
func (svc *Service) UpcomingMeetings(ctx context.Context) ([]Meeting, error) {
	meetings, err := svc.repo.QueryAllMeetings(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying meetings")
	}
	now := NowFunc()
	upcoming := make([]Meeting, 0)
	for _, m := range meetings {
		if m.Status == StatusScheduled && m.StartTime.After(now) {
			upcoming = append(upcoming, m)
		}
	}
	sortByStart(upcoming)
	return upcoming, nil
}

func sortByStart(meetings []Meeting) {
	sort.SliceStable(meetings, func(i, j int) bool {
		if meetings[i].StartTime.Equal(meetings[j].StartTime) {
			return meetings[i].CreatedAt.Before(meetings[j].CreatedAt)
		}
		return meetings[i].StartTime.Before(meetings[j].StartTime)
	})
}

func sortBySent(invs []Invitation) {
	sort.SliceStable(invs, func(i, j int) bool { return invs[i].SentAt.Before(invs[j].SentAt) })
}
