package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/bookstore/internal/auth"
	"github.com/vasiliy-maslov/bookstore/internal/catalog"
	"github.com/vasiliy-maslov/bookstore/internal/notify"
	"github.com/vasiliy-maslov/bookstore/internal/order"
)

type sentMail struct {
	to, subject, body string
}

type fakeClient struct {
	sent []sentMail
}

func (f *fakeClient) Send(_ context.Context, to, subject, body string) error {
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type fakeProfiles map[uuid.UUID]*auth.Profile

func (f fakeProfiles) GetProfileByID(_ context.Context, id uuid.UUID) (*auth.Profile, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}
	return nil, auth.ErrProfileNotFound
}

func sampleOrder(userID uuid.UUID) *order.Order {
	return &order.Order{
		ID:            uuid.Must(uuid.FromString("6ba7b810-9dad-11d1-80b4-00c04fd430c8")),
		UserID:        userID,
		TotalAmount:   decimal.RequireFromString("35"),
		Status:        order.StatusPending,
		PaymentMethod: order.PaymentKhalti,
		Items: []order.Line{
			{Quantity: 2, Price: decimal.RequireFromString("10"), Book: &catalog.Book{Title: "Dune"}},
			{Quantity: 3, Price: decimal.RequireFromString("5"), Book: &catalog.Book{Title: "The Hobbit"}},
		},
	}
}

func TestRenderOrder(t *testing.T) {
	body := notify.RenderOrder("Reader", sampleOrder(uuid.Must(uuid.NewV4())))

	want := "Hi Reader,\n\n" +
		"Thanks for your order 6ba7b810-9dad-11d1-80b4-00c04fd430c8.\n\n" +
		"  2 x Dune @ 10.00\n" +
		"  3 x The Hobbit @ 5.00\n" +
		"\nTotal: 35.00\n" +
		"Payment: khalti\n" +
		"Status: pending\n"
	assert.Equal(t, want, body)
}

func TestOrderMailer_OrderPlaced(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	client := &fakeClient{}
	mailer := notify.NewOrderMailer(client, fakeProfiles{
		userID: {ID: userID, Name: "Reader", Email: "reader@example.com"},
	}, "Bookstore")

	require.NoError(t, mailer.OrderPlaced(context.Background(), sampleOrder(userID)))
	require.Len(t, client.sent, 1)
	assert.Equal(t, "reader@example.com", client.sent[0].to)
	assert.Equal(t, "Bookstore order confirmation", client.sent[0].subject)
	assert.Contains(t, client.sent[0].body, "Total: 35.00")
}

func TestOrderMailer_UnknownBuyer(t *testing.T) {
	client := &fakeClient{}
	mailer := notify.NewOrderMailer(client, fakeProfiles{}, "Bookstore")

	err := mailer.OrderPlaced(context.Background(), sampleOrder(uuid.Must(uuid.NewV4())))
	assert.True(t, errors.Is(err, auth.ErrProfileNotFound))
	assert.Empty(t, client.sent)
}

func TestSendGridClient_RequiresKey(t *testing.T) {
	client := notify.NewSendGridClient("", "Bookstore", "shop@example.com")
	err := client.Send(context.Background(), "reader@example.com", "s", "b")
	assert.EqualError(t, err, "sendgrid api key is empty")
}

var _ order.Notifier = notify.Noop{}
var _ order.Notifier = (*notify.OrderMailer)(nil)
