package models

// User is the public identity record returned by /sign and /user-list.
// The json shape (_id/userName) is what the browser client consumes.
type User struct {
	ID   string `json:"_id"`
	Name string `json:"userName"`
}

// StoredUser is the private persisted record; the password hash never
// leaves the store package.
type StoredUser struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PasswordHash string `json:"password_hash"`
	CreatedTS    int64  `json:"created_ts"`
}

func (u StoredUser) Public() User {
	return User{ID: u.ID, Name: u.Name}
}
