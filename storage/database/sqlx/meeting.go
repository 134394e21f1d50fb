package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/redinnovafp/backend/core/meeting"
)

const (
	meetingColumns    = "id, title, description, type, start_time, end_time, organizer, participants, agenda, status, meeting_url, cancel_reason, created_at, updated_at"
	invitationColumns = "id, meeting_id, user_id, status, response_message, sent_at, responded_at"
)

type (
	meetingRepository struct {
		db *sqlx.DB
	}

	meetingRow struct {
		ID           string         `db:"id"`
		Title        string         `db:"title"`
		Description  string         `db:"description"`
		Type         string         `db:"type"`
		StartTime    time.Time      `db:"start_time"`
		EndTime      time.Time      `db:"end_time"`
		Organizer    string         `db:"organizer"`
		Participants pq.StringArray `db:"participants"`
		Agenda       pq.StringArray `db:"agenda"`
		Status       string         `db:"status"`
		URL          null.String    `db:"meeting_url"`
		CancelReason null.String    `db:"cancel_reason"`
		CreatedAt    time.Time      `db:"created_at"`
		UpdatedAt    time.Time      `db:"updated_at"`
	}

	invitationRow struct {
		ID              string      `db:"id"`
		MeetingID       string      `db:"meeting_id"`
		UserID          string      `db:"user_id"`
		Status          string      `db:"status"`
		ResponseMessage null.String `db:"response_message"`
		SentAt          time.Time   `db:"sent_at"`
		RespondedAt     null.Time   `db:"responded_at"`
	}
)

var _ meeting.Repository = (*meetingRepository)(nil)

func NewMeetingRepository(db *sqlx.DB) meeting.Repository {
	return &meetingRepository{db: db}
}

func toMeetingRow(m meeting.Meeting) meetingRow {
	row := meetingRow{
		ID:           m.ID,
		Title:        m.Title,
		Description:  m.Description,
		Type:         string(m.Type),
		StartTime:    m.StartTime.UTC(),
		EndTime:      m.EndTime.UTC(),
		Organizer:    m.Organizer,
		Participants: pq.StringArray(m.Participants),
		Agenda:       pq.StringArray(m.Agenda),
		Status:       string(m.Status),
		URL:          null.NewString(m.URL, m.URL != ""),
		CancelReason: null.NewString(m.CancelReason, m.CancelReason != ""),
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
	if row.Participants == nil {
		row.Participants = pq.StringArray{}
	}
	if row.Agenda == nil {
		row.Agenda = pq.StringArray{}
	}
	return row
}

func (row meetingRow) meeting() meeting.Meeting {
	return meeting.Meeting{
		ID:           row.ID,
		Title:        row.Title,
		Description:  row.Description,
		Type:         meeting.Type(row.Type),
		StartTime:    row.StartTime.UTC(),
		EndTime:      row.EndTime.UTC(),
		Organizer:    row.Organizer,
		Participants: []string(row.Participants),
		Agenda:       []string(row.Agenda),
		Status:       meeting.Status(row.Status),
		URL:          row.URL.String,
		CancelReason: row.CancelReason.String,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

func toInvitationRow(inv meeting.Invitation) invitationRow {
	return invitationRow{
		ID:              inv.ID,
		MeetingID:       inv.MeetingID,
		UserID:          inv.UserID,
		Status:          string(inv.Status),
		ResponseMessage: null.NewString(inv.ResponseMessage, inv.ResponseMessage != ""),
		SentAt:          inv.SentAt.UTC(),
		RespondedAt:     null.TimeFromPtr(inv.RespondedAt),
	}
}

func (row invitationRow) invitation() meeting.Invitation {
	return meeting.Invitation{
		ID:              row.ID,
		MeetingID:       row.MeetingID,
		UserID:          row.UserID,
		Status:          meeting.InvitationStatus(row.Status),
		ResponseMessage: row.ResponseMessage.String,
		SentAt:          row.SentAt.UTC(),
		RespondedAt:     row.RespondedAt.Ptr(),
	}
}

func (repo meetingRepository) CreateMeeting(ctx context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	q := `INSERT INTO meetings (` + meetingColumns + `)
		VALUES (:id, :title, :description, :type, :start_time, :end_time, :organizer, :participants, :agenda,
			:status, :meeting_url, :cancel_reason, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toMeetingRow(m)); err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "inserting meeting")
	}
	return m, nil
}

func (repo meetingRepository) GetMeetingByID(ctx context.Context, id string) (meeting.Meeting, error) {
	var row meetingRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+meetingColumns+` FROM meetings WHERE id::text = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return meeting.Meeting{}, meeting.ErrNotFound
		}
		return meeting.Meeting{}, errors.Wrap(err, "getting meeting")
	}
	return row.meeting(), nil
}

func (repo meetingRepository) QueryAllMeetings(ctx context.Context) ([]meeting.Meeting, error) {
	var rows []meetingRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT `+meetingColumns+` FROM meetings ORDER BY start_time`); err != nil {
		return nil, errors.Wrap(err, "querying meetings")
	}
	meetings := make([]meeting.Meeting, 0, len(rows))
	for _, row := range rows {
		meetings = append(meetings, row.meeting())
	}
	return meetings, nil
}

func (repo meetingRepository) UpdateMeeting(ctx context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	q := `UPDATE meetings SET title = :title, description = :description, type = :type, start_time = :start_time,
		end_time = :end_time, organizer = :organizer, participants = :participants, agenda = :agenda, status = :status,
		meeting_url = :meeting_url, cancel_reason = :cancel_reason, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toMeetingRow(m))
	if err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "updating meeting")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return meeting.Meeting{}, meeting.ErrNotFound
	}
	return m, nil
}

func (repo meetingRepository) DeleteMeeting(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM meetings WHERE id::text = $1`, id); err != nil {
		return errors.Wrap(err, "deleting meeting")
	}
	return nil
}

func (repo meetingRepository) CreateInvitation(ctx context.Context, inv meeting.Invitation) (meeting.Invitation, error) {
	q := `INSERT INTO meeting_invitations (` + invitationColumns + `)
		VALUES (:id, :meeting_id, :user_id, :status, :response_message, :sent_at, :responded_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toInvitationRow(inv)); err != nil {
		return meeting.Invitation{}, errors.Wrap(err, "inserting invitation")
	}
	return inv, nil
}

func (repo meetingRepository) GetInvitationByID(ctx context.Context, id string) (meeting.Invitation, error) {
	var row invitationRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+invitationColumns+` FROM meeting_invitations WHERE id::text = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return meeting.Invitation{}, meeting.ErrInvitationNotFound
		}
		return meeting.Invitation{}, errors.Wrap(err, "getting invitation")
	}
	return row.invitation(), nil
}

func (repo meetingRepository) QueryInvitations(ctx context.Context, filter meeting.InvitationFilter) ([]meeting.Invitation, error) {
	var where []string
	var args []interface{}
	eq := func(col, v string) {
		if v != "" {
			args = append(args, v)
			where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
		}
	}
	eq("meeting_id::text", filter.MeetingID)
	eq("user_id", filter.UserID)
	eq("status", string(filter.Status))

	q := `SELECT ` + invitationColumns + ` FROM meeting_invitations`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY sent_at"

	var rows []invitationRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying invitations")
	}
	invs := make([]meeting.Invitation, 0, len(rows))
	for _, row := range rows {
		invs = append(invs, row.invitation())
	}
	return invs, nil
}

func (repo meetingRepository) UpdateInvitation(ctx context.Context, inv meeting.Invitation) (meeting.Invitation, error) {
	q := `UPDATE meeting_invitations SET status = :status, response_message = :response_message, responded_at = :responded_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toInvitationRow(inv))
	if err != nil {
		return meeting.Invitation{}, errors.Wrap(err, "updating invitation")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return meeting.Invitation{}, meeting.ErrInvitationNotFound
	}
	return inv, nil
}

func (repo meetingRepository) DeleteInvitationsByMeeting(ctx context.Context, meetingID string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM meeting_invitations WHERE meeting_id::text = $1`, meetingID); err != nil {
		return errors.Wrap(err, "deleting invitations")
	}
	return nil
}

