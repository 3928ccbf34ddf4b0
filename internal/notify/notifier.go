package notify

import (
	"context"
	"fmt"

	"github.com/spec-kit/facility-requests/internal/domain"
)

// Notifier renders the two request notifications and sends them through a Mailer.
type Notifier struct {
	mailer     Mailer
	adminEmail string
	appURL     string
}

// NewNotifier builds a notifier. appURL is the public base for links in the messages.
func NewNotifier(mailer Mailer, adminEmail, appURL string) *Notifier {
	return &Notifier{mailer: mailer, adminEmail: adminEmail, appURL: appURL}
}

// NotifyCreated tells the administrator mailbox about a new request.
func (n *Notifier) NotifyCreated(ctx context.Context, req domain.FacilityRequest, owner domain.UserProfile) error {
	html, err := render("created.html", createdView{
		Request:       req,
		Owner:         owner,
		SeverityColor: severityColor(req.Severity),
		Link:          fmt.Sprintf("%s/admin/%s", n.appURL, req.ID),
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, Message{
		To:      n.adminEmail,
		Subject: fmt.Sprintf("New Facility Request - %s Priority", req.Severity),
		HTML:    html,
	})
}

// NotifyResponded tells the request owner about an administrator reply.
func (n *Notifier) NotifyResponded(ctx context.Context, req domain.FacilityRequest, owner domain.UserProfile, message string) error {
	html, err := render("responded.html", respondedView{
		Request: req,
		Message: message,
		Link:    fmt.Sprintf("%s/requests/%s", n.appURL, req.ID),
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, Message{
		To:      owner.Email,
		Subject: "Update on Your Facility Request - " + req.Location,
		HTML:    html,
	})
}
