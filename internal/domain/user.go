package domain

import "time"

// User is a directory entry. Identity itself is issued elsewhere; the id is
// the token subject.
type User struct {
	ID          string             `bson:"_id" json:"id"`
	Username    string             `bson:"username" json:"username"`
	DisplayName string             `bson:"display_name" json:"display_name"`
	Avatar      string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Prefs       *NotificationPrefs `bson:"notification_prefs,omitempty" json:"notification_prefs,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// NotificationPrefs returns the stored preferences or the defaults.
func (u *User) NotificationPrefs() NotificationPrefs {
	if u.Prefs == nil {
		return DefaultNotificationPrefs()
	}
	return *u.Prefs
}

func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

func (u *User) Ref() *UserRef {
	return &UserRef{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Avatar: u.Avatar}
}
