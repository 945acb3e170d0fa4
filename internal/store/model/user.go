package model

// User roles as recorded by the accounts system. Premium users are
// exempt from result archival.
const (
	RoleFreeUser    = "free_user"
	RolePremiumUser = "premium_user"
)

// User is the slice of the accounts table the pipeline reads for
// entitlement lookups. The web layer owns the rest of the profile.
type User struct {
	ID    string `gorm:"primaryKey;column:id"`
	Email string `gorm:"column:email"`
	Role  string `gorm:"column:role;not null;default:free_user"`
}

func (User) TableName() string {
	return "users"
}
