package inmemdb

import (
	"context"

	"github.com/redinnovafp/backend/core/meeting"
)

type meetingRepository struct {
	db *DB
}

var _ meeting.Repository = (*meetingRepository)(nil)

func NewMeetingRepository(db *DB) meeting.Repository {
	return &meetingRepository{db: db}
}

func cloneMeeting(m meeting.Meeting) meeting.Meeting {
	m.Participants = append([]string{}, m.Participants...)
	m.Agenda = append([]string{}, m.Agenda...)
	return m
}

func (repo *meetingRepository) CreateMeeting(_ context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	m = cloneMeeting(m)
	repo.db.meeting.upsert(m.ID, m)
	return cloneMeeting(m), repo.db.changed(MeetingStorage)
}

func (repo *meetingRepository) GetMeetingByID(_ context.Context, id string) (meeting.Meeting, error) {
	if m, ok := repo.db.meeting.get(id); ok {
		return cloneMeeting(m), nil
	}
	return meeting.Meeting{}, meeting.ErrNotFound
}

func (repo *meetingRepository) QueryAllMeetings(_ context.Context) ([]meeting.Meeting, error) {
	meetings := repo.db.meeting.filter(nil)
	for i := range meetings {
		meetings[i] = cloneMeeting(meetings[i])
	}
	return meetings, nil
}

func (repo *meetingRepository) UpdateMeeting(_ context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	m = cloneMeeting(m)
	if !repo.db.meeting.update(m.ID, m) {
		return meeting.Meeting{}, meeting.ErrNotFound
	}
	return cloneMeeting(m), repo.db.changed(MeetingStorage)
}

func (repo *meetingRepository) DeleteMeeting(_ context.Context, id string) error {
	if !repo.db.meeting.delete(id) {
		return nil
	}
	return repo.db.changed(MeetingStorage)
}

func (repo *meetingRepository) CreateInvitation(_ context.Context, inv meeting.Invitation) (meeting.Invitation, error) {
	repo.db.invitation.upsert(inv.ID, inv)
	return inv, repo.db.changed(MeetingStorage)
}

func (repo *meetingRepository) GetInvitationByID(_ context.Context, id string) (meeting.Invitation, error) {
	if inv, ok := repo.db.invitation.get(id); ok {
		return inv, nil
	}
	return meeting.Invitation{}, meeting.ErrInvitationNotFound
}

func (repo *meetingRepository) QueryInvitations(_ context.Context, filter meeting.InvitationFilter) ([]meeting.Invitation, error) {
	return repo.db.invitation.filter(filter.Match), nil
}

func (repo *meetingRepository) UpdateInvitation(_ context.Context, inv meeting.Invitation) (meeting.Invitation, error) {
	if !repo.db.invitation.update(inv.ID, inv) {
		return meeting.Invitation{}, meeting.ErrInvitationNotFound
	}
	return inv, repo.db.changed(MeetingStorage)
}

func (repo *meetingRepository) DeleteInvitationsByMeeting(_ context.Context, meetingID string) error {
	if repo.db.invitation.deleteWhere(func(inv meeting.Invitation) bool { return inv.MeetingID == meetingID }) == 0 {
		return nil
	}
	return repo.db.changed(MeetingStorage)
}
