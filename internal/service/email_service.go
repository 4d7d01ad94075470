package service

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/jobs"
	"github.com/squirll/receiptd/internal/models"
	"github.com/squirll/receiptd/internal/notify"
)

var (
	rePromoSubject  = regexp.MustCompile(`(?i)(newsletter|coupon|% off|special offer|clearance|deal(?:s)?|sale\s+ends)`)
	reTransactional = regexp.MustCompile(`(?i)(invoice|receipt|order|shipped|paid|payment|booking|ticket|statement)`)
)

// espFingerprints are X-Mailer values of bulk email service providers.
var espFingerprints = []string{"mailchimp", "constantcontact", "klaviyo"}

// receiptKeywords flag emails worth running through receipt extraction.
var receiptKeywords = []string{
	"receipt", "order confirmation", "invoice", "total",
	"subtotal", "payment", "transaction", "purchase",
	"order #", "order number", "amount paid",
}

// InboundEmailForm is the parsed MIME payload the inbound gateway posts.
type InboundEmailForm struct {
	To          string
	From        string
	Subject     string
	HTML        string
	Text        string
	Headers     string
	Raw         string
	Attachments map[string]models.Attachment
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetBySquirllID(ctx context.Context, squirllID string) (*models.User, error)
}

type EmailStore interface {
	Create(ctx context.Context, email *models.Email) error
	GetByID(ctx context.Context, id int64) (*models.Email, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Email, error)
}

// EmailService stores inbound emails, classifies them, and hands
// receipt-looking ones to the ingestion pipeline. The webhook handler only
// needs a fast acknowledgment, so extraction is deferred to the job queue.
type EmailService struct {
	users  UserStore
	emails EmailStore
	ingest *IngestService
	queue  *jobs.Queue
	hub    *notify.Hub
	logger *zap.Logger
}

func NewEmailService(
	users UserStore,
	emails EmailStore,
	ingest *IngestService,
	queue *jobs.Queue,
	hub *notify.Hub,
	logger *zap.Logger,
) *EmailService {
	return &EmailService{
		users:  users,
		emails: emails,
		ingest: ingest,
		queue:  queue,
		hub:    hub,
		logger: logger,
	}
}

// ProcessInbound validates, classifies and stores one inbound email. It
// returns the stored email and whether receipt extraction was scheduled.
func (s *EmailService) ProcessInbound(ctx context.Context, form InboundEmailForm) (*models.Email, bool, error) {
	addr, err := mail.ParseAddress(form.To)
	if err != nil {
		return nil, false, fmt.Errorf("parse recipient address: %w", err)
	}

	user, err := s.users.GetBySquirllID(ctx, addr.Address)
	if err != nil {
		return nil, false, fmt.Errorf("no user for address %s: %w", addr.Address, err)
	}

	if form.From == "" || form.Subject == "" {
		return nil, false, fmt.Errorf("missing required 'from' or 'subject' field")
	}

	html := form.HTML
	if html == "" {
		html = form.Text
	}
	if html == "" {
		html = "<p>(no html body)</p>"
	}

	category := models.EmailCategoryMessage
	if isMarketing(form.Headers, form.Subject) {
		category = models.EmailCategoryMarketing
	}

	email := &models.Email{
		UserID:      user.ID,
		Sender:      form.From,
		Subject:     form.Subject,
		Company:     companyFromSender(form.From),
		HTML:        html,
		TextContent: form.Text,
		Headers:     form.Headers,
		RawEmail:    form.Raw,
		Attachments: form.Attachments,
		Category:    category,
	}

	if err := s.emails.Create(ctx, email); err != nil {
		return nil, false, fmt.Errorf("store email: %w", err)
	}

	s.hub.Publish(notify.EmailReceived(user.ID, email.ID, email.Subject, string(email.Category), email.Company))

	isReceipt := containsReceiptKeywords(form.Subject, html, form.Text)
	if isReceipt {
		userID := user.ID
		err := s.queue.Enqueue(ctx, jobs.KindEmailIngest, func(ctx context.Context) error {
			_, err := s.ingest.IngestEmailHTML(ctx, userID, html)
			return err
		})
		if err != nil {
			s.logger.Error("Failed to enqueue email receipt extraction",
				zap.Int64("email_id", email.ID),
				zap.Error(err),
			)
			isReceipt = false
		}
	}

	s.logger.Info("Inbound email processed",
		zap.Int64("email_id", email.ID),
		zap.String("company", email.Company),
		zap.String("category", string(email.Category)),
		zap.Bool("is_receipt", isReceipt),
		zap.Int("attachments", len(form.Attachments)),
	)
	return email, isReceipt, nil
}

// isMarketing decides promo vs transactional: explicit bulk headers first,
// then known ESP fingerprints, then subject keywords unless transactional
// keywords are also present.
func isMarketing(rawHeaders, subject string) bool {
	headers := parseHeaderBlob(rawHeaders)

	if headers.Get("List-Unsubscribe") != "" || headers.Get("List-Id") != "" {
		return true
	}

	xMailer := strings.ToLower(headers.Get("X-Mailer"))
	for _, fp := range espFingerprints {
		if strings.Contains(xMailer, fp) {
			return true
		}
	}

	return rePromoSubject.MatchString(subject) && !reTransactional.MatchString(subject)
}

// parseHeaderBlob reads a bare header block, tolerating escaped CRLF
// sequences some gateways send.
func parseHeaderBlob(raw string) mail.Header {
	normalized := strings.ReplaceAll(raw, `\r\n`, "\r\n")
	msg, err := mail.ReadMessage(strings.NewReader(normalized + "\r\n\r\n"))
	if err != nil {
		return mail.Header{}
	}
	return msg.Header
}

// companyFromSender prefers the display name, falling back to the sender
// domain without its public suffix.
func companyFromSender(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return "Miscellaneous"
	}
	if addr.Name != "" {
		if len(addr.Name) > 255 {
			return addr.Name[:255]
		}
		return addr.Name
	}

	at := strings.LastIndex(addr.Address, "@")
	if at < 0 {
		return "Miscellaneous"
	}
	labels := strings.Split(addr.Address[at+1:], ".")
	if len(labels) < 2 {
		return "Miscellaneous"
	}
	domain := labels[len(labels)-2]
	// Step over compound public suffixes like co.uk or com.au.
	if len(labels) >= 3 {
		switch domain {
		case "co", "com", "net", "org", "gov", "ac", "edu":
			domain = labels[len(labels)-3]
		}
	}
	return domain
}

func containsReceiptKeywords(parts ...string) bool {
	for _, part := range parts {
		lower := strings.ToLower(part)
		for _, kw := range receiptKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}
