package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"storefront/internal/domain"
)

// SummaryLine is one purchased line as shown to the shop owner.
type SummaryLine struct {
	ProductName string          `json:"product_name"`
	VariantCode string          `json:"variant_code,omitempty"`
	Quantity    int64           `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// OrderSummary is the payload of the "new order" message.
type OrderSummary struct {
	OrderID   uuid.UUID          `json:"order_id"`
	Number    string             `json:"number"`
	Status    domain.OrderStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	Client    domain.Client      `json:"client"`
	Lines     []SummaryLine      `json:"lines"`
	Total     decimal.Decimal    `json:"total"`
}

func (s OrderSummary) Subject() string {
	return fmt.Sprintf("Nuevo pedido #%s", s.Number)
}

// Message renders the plain text body.
func (s OrderSummary) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pedido #%s\n", s.Number)
	fmt.Fprintf(&b, "Fecha: %s\n", s.CreatedAt.Format("02/01/2006 15:04"))
	fmt.Fprintf(&b, "Estado: %s\n\n", s.Status)
	fmt.Fprintf(&b, "Cliente: %s\nTelefono: %s\n", s.Client.Name, s.Client.Phone)
	if s.Client.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", s.Client.Email)
	}
	b.WriteString("\nProductos:\n")
	for _, l := range s.Lines {
		name := l.ProductName
		if l.VariantCode != "" {
			name += " (" + l.VariantCode + ")"
		}
		fmt.Fprintf(&b, "- %s x%d - $%s\n", name, l.Quantity, l.Subtotal.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: $%s\n", s.Total.StringFixed(2))
	if digits := onlyDigits(s.Client.Phone); digits != "" {
		fmt.Fprintf(&b, "WhatsApp: https://wa.me/%s\n", digits)
	}
	return b.String()
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// Sender delivers an order summary over some channel.
type Sender interface {
	Send(ctx context.Context, s OrderSummary) error
}

// LogSender writes the summary to the log. Used when no webhook is configured.
type LogSender struct {
	Log log.FieldLogger
}

func (l LogSender) Send(_ context.Context, s OrderSummary) error {
	l.Log.WithFields(log.Fields{
		"order_id":      s.OrderID,
		"numero_pedido": s.Number,
		"client":        s.Client.Name,
		"total":         s.Total.StringFixed(2),
	}).Info("new order")
	return nil
}

// WebhookSender posts the summary as a form-submission JSON document.
type WebhookSender struct {
	URL    string
	Client *http.Client
}

func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{URL: url, Client: &http.Client{}}
}

type webhookPayload struct {
	Subject  string `json:"_subject"`
	Message  string `json:"message"`
	Template string `json:"_template"`
	Captcha  string `json:"_captcha"`
}

func (w *WebhookSender) Send(ctx context.Context, s OrderSummary) error {
	body, err := json.Marshal(webhookPayload{Subject: s.Subject(), Message: s.Message(), Template: "box", Captcha: "false"})
	if err != nil {
		return errors.Wrap(err, "encode webhook payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post webhook")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("webhook responded %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Dispatcher sends summaries with a deadline. Failures are logged and never
// returned.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	log     log.FieldLogger
}

func NewDispatcher(sender Sender, timeout time.Duration, logger log.FieldLogger) *Dispatcher {
	return &Dispatcher{sender: sender, timeout: timeout, log: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, s OrderSummary) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	entry := d.log.WithFields(log.Fields{"order_id": s.OrderID, "numero_pedido": s.Number})
	defer func() {
		if p := recover(); p != nil {
			entry.WithField("panic", p).Error("order notification panicked")
		}
	}()
	if err := d.sender.Send(ctx, s); err != nil {
		entry.WithError(err).Error("order notification failed")
		return
	}
	entry.Debug("order notification sent")
}
