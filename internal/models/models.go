package models

import "time"

// Subscriber is a registered newsletter address. Email is stored
// normalized and UnsubscribeToken is the only credential needed to
// remove the row.
type Subscriber struct {
	ID               int64
	Email            string
	UnsubscribeToken string
	CreatedAt        time.Time
}
