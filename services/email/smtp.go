package emailsvc

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	gomail "github.com/wneessen/go-mail"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/settings"
)

var errSMTPNotConfigured = errors.New("smtp is not configured")

type smtpService struct {
	conf       core.SMTPConfig
	from       mail.Address
	subjPrefix string
	settings   settings.Provider
	logger     core.Logger
}

var _ core.EmailService = (*smtpService)(nil)

// NewSMTPService sends emails through the SMTP server of the app settings, falling back to the config one.
func NewSMTPService(conf *core.Config, sp settings.Provider, logger core.Logger) core.EmailService {
	return &smtpService{
		conf:       conf.SMTP,
		from:       conf.DefaultFromEmail,
		subjPrefix: "[" + conf.AppName + "] ",
		settings:   sp,
		logger:     logger,
	}
}

func (svc smtpService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := svc.Send(context.Background(), msg); err != nil {
				svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
			}
		}()
	}
}

func (svc smtpService) Send(ctx context.Context, msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return nil
	}

	conf := svc.current()
	if conf.Host == "" {
		return errSMTPNotConfigured
	}

	m, err := svc.prepare(conf, *msg)
	if err != nil {
		return errors.Wrap(err, "preparing email")
	}
	client, err := newSMTPClient(conf)
	if err != nil {
		return errors.Wrap(err, "creating smtp client")
	}
	if err = client.DialAndSendWithContext(ctx, m); err != nil {
		return errors.Wrap(err, "sending email")
	}
	return nil
}

// current returns the SMTP settings to use at call time.
func (svc smtpService) current() core.SMTPConfig {
	if svc.settings != nil {
		if s := svc.settings.Current().SMTP; s != nil && s.Host != "" {
			return core.SMTPConfig{
				Host:     s.Host,
				Port:     s.Port,
				Secure:   s.Secure,
				User:     s.User,
				Password: s.Password,
				From:     s.From,
			}
		}
	}
	return svc.conf
}

func (svc smtpService) prepare(conf core.SMTPConfig, msg core.EmailMessage) (*gomail.Msg, error) {
	from := svc.from
	if conf.From != "" {
		from = mail.Address{Name: svc.from.Name, Address: conf.From}
	}
	if msg.From != nil {
		from = *msg.From
	}

	m := gomail.NewMsg()
	if err := m.From(from.String()); err != nil {
		return nil, errors.Wrap(err, "setting from")
	}
	if err := m.To(addressList(msg.To)...); err != nil {
		return nil, errors.Wrap(err, "setting to")
	}
	if len(msg.Cc) > 0 {
		if err := m.Cc(addressList(msg.Cc)...); err != nil {
			return nil, errors.Wrap(err, "setting cc")
		}
	}
	if len(msg.Bcc) > 0 {
		if err := m.Bcc(addressList(msg.Bcc)...); err != nil {
			return nil, errors.Wrap(err, "setting bcc")
		}
	}
	m.Subject(svc.subjPrefix + msg.Subject)

	m.SetBodyString(gomail.TypeTextPlain, msg.TextContent)
	if msg.HTMLContent != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLContent)
	}
	for _, at := range msg.Attachments {
		m.AttachReader(at.Filename, decodeAttachment(at))
	}
	return m, nil
}

func newSMTPClient(conf core.SMTPConfig) (*gomail.Client, error) {
	opts := []gomail.Option{gomail.WithPort(conf.Port)}
	if conf.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(conf.User),
			gomail.WithPassword(conf.Password),
		)
	}
	if conf.Secure {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	return gomail.NewClient(conf.Host, opts...)
}

func addressList(addrs []mail.Address) []string {
	list := make([]string, 0, len(addrs))
	for _, a := range addrs {
		list = append(list, a.String())
	}
	return list
}

// decodeAttachment undoes the base64 encoding of stored attachments, go-mail encodes them itself.
func decodeAttachment(at core.Attachment) io.Reader {
	return base64.NewDecoder(base64.StdEncoding, strings.NewReader(at.Content.String()))
}
