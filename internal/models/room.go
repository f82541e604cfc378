package models

// Room is a two-party chat. Users are ordered: index 0 is the caller, index 1
// the counterpart (the profile shown next to the feed).
type Room struct {
	ID       int64     `json:"id,string"`
	Users    []User    `json:"users"`
	Messages []Message `json:"messages"`
}

// Counterpart returns the other participant, or a zero User when the
// participant list is incomplete.
func (r *Room) Counterpart() User {
	if len(r.Users) > 1 {
		return r.Users[1]
	}
	return User{}
}
