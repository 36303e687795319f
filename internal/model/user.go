package model

import "time"

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// UserPublic is the subset of User attached to hydrated messages.
type UserPublic struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

func (u *User) ToPublic() UserPublic {
	return UserPublic{ID: u.ID, Username: u.Username}
}

// PushSubscription is a browser Web Push subscription owned by a user.
type PushSubscription struct {
	Username  string    `json:"username"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}
