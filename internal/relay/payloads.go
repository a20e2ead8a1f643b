package relay

import "encoding/json"

// flexID accepts a JSON string or number and normalizes it to a string.
// The browser clients are inconsistent about numeric ids (project and user
// ids arrive as numbers, room and chat ids as strings).
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// userRef is the identity object carried by join-project.
type userRef struct {
	ID       flexID `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// --- inbound payloads, one tagged variant per event ---

type joinRoomPayload struct {
	Username string `json:"username"`
	RoomID   flexID `json:"roomid"`
}

type joinProjectPayload struct {
	ProjectID flexID  `json:"projectId"`
	User      userRef `json:"user"`
}

type joinFilePayload struct {
	FileID    flexID `json:"fileId"`
	ProjectID flexID `json:"projectId"`
}

// codeChangePayload carries either the legacy pair (code, roomid) or the
// live-editing tuple (code, fileId, projectId, user); both at once routes
// to both audiences.
type codeChangePayload struct {
	Code      json.RawMessage `json:"code"`
	RoomID    flexID          `json:"roomid"`
	FileID    flexID          `json:"fileId"`
	ProjectID flexID          `json:"projectId"`
	User      json.RawMessage `json:"user"`
}

type cursorPayload struct {
	Position json.RawMessage `json:"position"`
	FileID   flexID          `json:"fileId"`
	User     json.RawMessage `json:"user"`
}

type outputPayload struct {
	Output json.RawMessage `json:"output"`
	RoomID flexID          `json:"roomid"`
}

type btnRunPayload struct {
	CodeRun json.RawMessage `json:"coderun"`
	RoomID  flexID          `json:"roomid"`
}

type roomOnlyPayload struct {
	RoomID flexID `json:"roomid"`
}

type languagePayload struct {
	Language json.RawMessage `json:"language"`
	RoomID   flexID          `json:"roomid"`
}

type roomMessagePayload struct {
	Message  json.RawMessage `json:"message"`
	Username string          `json:"username"`
	RoomID   flexID          `json:"roomid"`
}

type fileChangedPayload struct {
	ProjectID flexID `json:"projectId"`
	FileID    flexID `json:"fileId"`
	FileName  string `json:"fileName"`
	UserID    flexID `json:"userId"`
	Username  string `json:"username"`
}

// signalPayload covers audio-offer, audio-answer and ice-candidate. To is
// accepted but unused: the whole project room hears the message and
// receivers filter by From.
type signalPayload struct {
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	To        flexID          `json:"to"`
	From      json.RawMessage `json:"from"`
}

type chatRefPayload struct {
	ChatID flexID `json:"chatId"`
	UserID flexID `json:"userId"`
}

type chatMessagePayload struct {
	ChatID     flexID `json:"chatId"`
	Message    string `json:"message"`
	SenderID   flexID `json:"senderId"`
	SenderName string `json:"senderName"`
}

type typingPayload struct {
	ChatID   flexID `json:"chatId"`
	UserID   flexID `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}
