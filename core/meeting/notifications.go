package meeting

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/message"
	"github.com/redinnovafp/backend/core/user"
)

type Kind string

// Notification kinds
const (
	KindInvitation   Kind = "invitation"
	KindReminder     Kind = "reminder"
	KindUpdate       Kind = "update"
	KindCancellation Kind = "cancellation"
)

var (
	ErrNoEmailAddress = errors.New("recipient has no email address")

	dateLayout = "02/01/2006"
	timeLayout = "15:04"
)

type (
	// MessageSender delivers internal messages.
	MessageSender interface {
		Send(ctx context.Context, nm message.NewMessage) (message.Message, error)
	}

	// Delivery is the outcome of a notification, per channel.
	Delivery struct {
		Recipient  string
		Kind       Kind
		MessageErr error
		EmailErr   error
	}

	// Dispatcher notifies meeting events through the internal messaging channel and by email.
	Dispatcher struct {
		messages MessageSender
		mailSvc  core.EmailService
		logger   core.Logger
		loc      *time.Location
	}

	// notice is the data the notification templates are rendered with.
	notice struct {
		Meeting   Meeting
		Organizer string
		Date      string
		DateTime  string
		StartTime string
		EndTime   string
		TypeLabel string
		Changes   []string
		Reason    string
		Minutes   int
	}
)

func (d Delivery) OK() bool { return d.MessageErr == nil && d.EmailErr == nil }

func NewDispatcher(messages MessageSender, mailSvc core.EmailService, logger core.Logger, loc *time.Location) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{messages: messages, mailSvc: mailSvc, logger: logger, loc: loc}
}

func (d *Dispatcher) newNotice(m Meeting) notice {
	start, end := m.StartTime.In(d.loc), m.EndTime.In(d.loc)
	return notice{
		Meeting:   m,
		Date:      start.Format(dateLayout),
		DateTime:  start.Format(dateLayout + " " + timeLayout),
		StartTime: start.Format(timeLayout),
		EndTime:   end.Format(timeLayout),
		TypeLabel: m.Type.Label(),
	}
}

// Invitation notifies invitee they were invited by organizer.
func (d *Dispatcher) Invitation(ctx context.Context, m Meeting, invitee, organizer user.User) Delivery {
	n := d.newNotice(m)
	n.Organizer = organizer.FullName()
	return d.deliver(ctx, KindInvitation, invitee, "Invitación a Reunión: "+m.Title, n)
}

// Reminder notifies participant the meeting starts in `before`.
func (d *Dispatcher) Reminder(ctx context.Context, m Meeting, participant user.User, before time.Duration) Delivery {
	n := d.newNotice(m)
	n.Minutes = int(before.Round(time.Minute) / time.Minute)
	return d.deliver(ctx, KindReminder, participant, "Recordatorio: "+m.Title, n)
}

// Update notifies participant of the changes made to the meeting.
func (d *Dispatcher) Update(ctx context.Context, m Meeting, participant user.User, changes []string) Delivery {
	n := d.newNotice(m)
	n.Changes = changes
	return d.deliver(ctx, KindUpdate, participant, "Actualización de Reunión: "+m.Title, n)
}

// Cancellation notifies participant the meeting was cancelled, reason is optional.
func (d *Dispatcher) Cancellation(ctx context.Context, m Meeting, participant user.User, reason string) Delivery {
	n := d.newNotice(m)
	n.Reason = reason
	return d.deliver(ctx, KindCancellation, participant, "Cancelación de Reunión: "+m.Title, n)
}

// deliver attempts both channels independently & logs each failure.
func (d *Dispatcher) deliver(ctx context.Context, kind Kind, to user.User, subject string, n notice) Delivery {
	tmpl := "meeting_" + string(kind)
	dlv := Delivery{Recipient: to.ID, Kind: kind}

	content, err := core.RenderMessage(tmpl, n)
	if err == nil {
		_, err = d.messages.Send(ctx, message.NewMessage{
			SenderID:    message.SystemSender,
			RecipientID: to.ID,
			Content:     content,
		})
	}
	if err != nil {
		dlv.MessageErr = errors.Wrap(err, "sending internal message")
		d.logger.Error(fmt.Sprintf("meeting %s %s: %v", n.Meeting.ID, kind, dlv.MessageErr), dlv.MessageErr, logFields(n.Meeting, kind, to, "message"))
	}

	if to.Email == "" {
		err = ErrNoEmailAddress
	} else {
		err = d.mailSvc.Send(ctx, &core.EmailMessage{
			To:           []mail.Address{{Name: to.FullName(), Address: to.Email}},
			Subject:      subject,
			TemplateName: tmpl,
			TemplateData: n,
		})
	}
	if err != nil {
		dlv.EmailErr = errors.Wrap(err, "sending email")
		d.logger.Error(fmt.Sprintf("meeting %s %s: %v", n.Meeting.ID, kind, dlv.EmailErr), dlv.EmailErr, logFields(n.Meeting, kind, to, "email"))
	}
	return dlv
}

func logFields(m Meeting, kind Kind, to user.User, channel string) core.LogFields {
	return core.LogFields{"meeting": m.ID, "kind": string(kind), "recipient": to.ID, "channel": channel}
}
