package mailer

import (
	"context"
	"path"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/fsx"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx"
)

// DeliveryObserver is told about every delivery attempt
type DeliveryObserver interface {
	MailSent(template string, err error)
}

// Sender is the worker side: it renders and delivers queued mails
type Sender struct {
	client    *notifx.Client
	observer  DeliveryObserver
	configSet string

	// localized holds "<template>.<language>" names with an override
	localized map[string]bool
}

// NewSender registers the account templates on client. observer may be nil.
func NewSender(client *notifx.Client, observer DeliveryObserver) (*Sender, error) {
	for name, tpl := range templates {
		if err := client.RegisterTemplate(name, tpl); err != nil {
			return nil, err
		}
	}
	return &Sender{client: client, observer: observer, localized: map[string]bool{}}, nil
}

// UseConfigSet makes every send name the provider configuration set name
func (s *Sender) UseConfigSet(name string) {
	s.configSet = name
}

// LoadOverrides replaces built-in templates with files from dir. For a
// template T it reads T.subject, T.txt and T.html at the root, and the
// same names below <language>/ for per-language variants. A missing part
// keeps the part it would otherwise fall back to. Call it before the
// sender handles jobs.
func (s *Sender) LoadOverrides(ctx context.Context, dir fsx.FileReader, languages []string) error {
	for name, builtin := range templates {
		base, found, err := readTemplate(ctx, dir, "", name, builtin)
		if err != nil {
			return err
		}
		if found {
			if err := s.client.RegisterTemplate(name, base); err != nil {
				return err
			}
			logx.WithField("template", name).Info("mail template overridden")
		}

		for _, lang := range languages {
			tpl, found, err := readTemplate(ctx, dir, lang, name, base)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			if err := s.client.RegisterTemplate(name+"."+lang, tpl); err != nil {
				return err
			}
			s.localized[name+"."+lang] = true
		}
	}
	return nil
}

// readTemplate overlays the files of name found in sub onto fallback
func readTemplate(ctx context.Context, dir fsx.FileReader, sub, name string, fallback notifx.Template) (notifx.Template, bool, error) {
	tpl := fallback
	found := false
	for ext, part := range map[string]*string{
		".subject": &tpl.Subject,
		".txt":     &tpl.Text,
		".html":    &tpl.HTML,
	} {
		data, err := dir.ReadFile(ctx, path.Join(sub, name+ext))
		if errx.HasCode(err, fsx.CodeNotFound) {
			continue
		}
		if err != nil {
			return tpl, false, err
		}
		*part = string(data)
		found = true
	}
	return tpl, found, nil
}

func (s *Sender) templateFor(m Mail) string {
	if m.Language != "" && s.localized[m.Template+"."+m.Language] {
		return m.Template + "." + m.Language
	}
	return m.Template
}

// Handle is a jobx.HandlerFunc for JobType
func (s *Sender) Handle(ctx context.Context, job *jobx.JobInfo) error {
	var m Mail
	if err := job.Decode(&m); err != nil {
		return err
	}

	data := map[string]any{}
	for k, v := range m.Data {
		data[k] = v
	}
	data["Email"] = m.To
	data["BlockLink"] = m.BlockLink

	msg := notifx.EmailMessage{To: []string{m.To}}
	if m.BlockLink != "" {
		msg.Headers = map[string]string{"List-Unsubscribe": "<" + m.BlockLink + ">"}
	}

	opts := []notifx.Option{notifx.WithTags(map[string]string{"template": m.Template})}
	if s.configSet != "" {
		opts = append(opts, notifx.WithConfigID(s.configSet))
	}

	err := s.client.SendTemplatedEmail(ctx, s.templateFor(m), data, msg, opts...)
	if s.observer != nil {
		s.observer.MailSent(m.Template, err)
	}
	if err != nil {
		return err
	}
	logx.WithContext(ctx).WithFields(logx.Fields{"template": m.Template, "job_id": job.ID}).Info("mail sent")
	return nil
}

// Register wires the sender into a job client or inline dispatcher
func (s *Sender) Register(r interface {
	Register(jobType string, handler jobx.HandlerFunc)
}) {
	r.Register(JobType, s.Handle)
}
