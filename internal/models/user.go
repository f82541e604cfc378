package models

// User represents an account in the messaging service. The client only ever
// holds read references: the profile subsystem on the server owns the data.
type User struct {
	ID       int64  `json:"id,string"`
	FullName string `json:"fullName"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}
