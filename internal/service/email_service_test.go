package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMarketing(t *testing.T) {
	tests := []struct {
		name    string
		headers string
		subject string
		want    bool
	}{
		{
			name:    "list-unsubscribe header",
			headers: "List-Unsubscribe: <mailto:unsub@example.com>",
			subject: "Your order has shipped",
			want:    true,
		},
		{
			name:    "list-id header",
			headers: "List-Id: deals.example.com",
			subject: "Hello",
			want:    true,
		},
		{
			name:    "esp fingerprint",
			headers: "X-Mailer: Mailchimp Mailer - **CID**",
			subject: "Hello",
			want:    true,
		},
		{
			name:    "promo subject",
			headers: "",
			subject: "Weekend Sale Ends Sunday!",
			want:    true,
		},
		{
			name:    "promo wording with transactional keyword",
			headers: "",
			subject: "Special offer on your next order",
			want:    false,
		},
		{
			name:    "plain transactional",
			headers: "",
			subject: "Your receipt from Blue Bottle",
			want:    false,
		},
		{
			name:    "escaped crlf header blob",
			headers: `List-Unsubscribe: <https://x.example>\r\nX-Mailer: foo`,
			subject: "Hi",
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isMarketing(tt.headers, tt.subject))
		})
	}
}

func TestCompanyFromSender(t *testing.T) {
	tests := []struct {
		name string
		from string
		want string
	}{
		{"display name wins", `"Blue Bottle Coffee" <orders@bluebottle.com>`, "Blue Bottle Coffee"},
		{"bare address uses domain", "noreply@wholefoods.com", "wholefoods"},
		{"subdomain ignored", "receipts@mail.stripe.com", "stripe"},
		{"compound public suffix", "orders@tesco.co.uk", "tesco"},
		{"unparseable sender", "not-an-address", "Miscellaneous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, companyFromSender(tt.from))
		})
	}
}

func TestContainsReceiptKeywords(t *testing.T) {
	assert.True(t, containsReceiptKeywords("Your Order Confirmation", "", ""))
	assert.True(t, containsReceiptKeywords("", "<p>Amount Paid: $12.99</p>", ""))
	assert.True(t, containsReceiptKeywords("", "", "order #12345"))
	assert.False(t, containsReceiptKeywords("Hi there", "<p>See you Friday</p>", "see you"))
}
