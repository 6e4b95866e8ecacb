package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/bookstore/internal/auth"
	"github.com/vasiliy-maslov/bookstore/internal/order"
)

type ProfileLookup interface {
	GetProfileByID(ctx context.Context, id uuid.UUID) (*auth.Profile, error)
}

// OrderMailer emails the buyer a summary of every placed order.
type OrderMailer struct {
	client   EmailClient
	profiles ProfileLookup
	store    string
}

func NewOrderMailer(client EmailClient, profiles ProfileLookup, storeName string) *OrderMailer {
	return &OrderMailer{client: client, profiles: profiles, store: storeName}
}

func (m *OrderMailer) OrderPlaced(ctx context.Context, o *order.Order) error {
	profile, err := m.profiles.GetProfileByID(ctx, o.UserID)
	if err != nil {
		return fmt.Errorf("notify: failed to look up buyer %s: %w", o.UserID, err)
	}

	subject := fmt.Sprintf("%s order confirmation", m.store)
	return m.client.Send(ctx, profile.Email, subject, RenderOrder(profile.Name, o))
}

// RenderOrder is the plain-text confirmation body.
func RenderOrder(name string, o *order.Order) string {
	var b strings.Builder

	if name != "" {
		fmt.Fprintf(&b, "Hi %s,\n\n", name)
	}
	fmt.Fprintf(&b, "Thanks for your order %s.\n\n", o.ID)

	for _, item := range o.Items {
		title := item.BookID.String()
		if item.Book != nil {
			title = item.Book.Title
		}
		fmt.Fprintf(&b, "  %d x %s @ %s\n", item.Quantity, title, item.Price.StringFixed(2))
	}

	fmt.Fprintf(&b, "\nTotal: %s\n", o.TotalAmount.StringFixed(2))
	fmt.Fprintf(&b, "Payment: %s\n", o.PaymentMethod)
	fmt.Fprintf(&b, "Status: %s\n", o.Status)
	return b.String()
}

// Noop drops every notification. It is used when no mail provider is configured.
type Noop struct{}

func (Noop) OrderPlaced(context.Context, *order.Order) error { return nil }
