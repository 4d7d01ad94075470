package models

import "time"

type SubscriptionType string

const (
	SubscriptionFree    SubscriptionType = "free"
	SubscriptionPremium SubscriptionType = "premium"
)

type User struct {
	ID               int64            `db:"id"`
	Email            string           `db:"email"`
	PhoneNumber      string           `db:"phone_number"`
	SubscriptionType SubscriptionType `db:"subscription_type"`
	// SquirllID is the pseudo e-mail address that receives forwarded
	// email receipts for this user.
	SquirllID string    `db:"squirll_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (u *User) IsPremium() bool {
	return u.SubscriptionType == SubscriptionPremium
}
