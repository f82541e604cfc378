package models

// Message is a single chat message as the server reports it. IDs are
// server-assigned and ascending in creation order, which is also the order
// the canonical room list keeps. Only Text ever changes after creation.
type Message struct {
	ID     int64  `json:"id,string"`
	RoomID int64  `json:"room,string,omitempty"`
	Text   string `json:"text"`
	Sender User   `json:"sender"`
	// Time is a display value. Sorting is by arrival order, never by Time.
	Time string `json:"time"`
}
