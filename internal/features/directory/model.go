package directory

import "time"

// Member is a user as known to the organizational role directory.
type Member struct {
	UserID      string    `bson:"_id" json:"user_id"`
	Username    string    `bson:"username" json:"username"`
	Roles       []string  `bson:"roles" json:"roles"`
	IsSuperuser bool      `bson:"is_superuser" json:"is_superuser"`
	IsActive    bool      `bson:"is_active" json:"is_active"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}
