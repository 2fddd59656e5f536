package socket

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Wire protocol event names. Every frame is an Envelope; client-chosen refs
// are echoed on direct replies so the caller can pair request and ack.
const (
	EventJoinDocument      = "join-document"      // client → server
	EventDocumentLoaded    = "document-loaded"    // server → joiner
	EventParticipantJoined = "participant-joined" // server → room
	EventEditDelta         = "edit-delta"         // client → server
	EventEditDeltaReceived = "edit-delta-received"
	EventCursorUpdate      = "cursor-update"
	EventCursorBroadcast   = "cursor-broadcast"
	EventTitleUpdate       = "title-update"
	EventTitleBroadcast    = "title-broadcast"
	EventSaveDocument      = "save-document"
	EventSaveAcknowledged  = "save-acknowledged" // direct ack to the saver
	EventSaveFailed        = "save-failed"       // direct ack to the saver
	EventSaveCompleted     = "save-completed"    // advisory, rest of room
	EventParticipantLeft   = "participant-left"
	EventAccessError       = "access-error"
)

// maxTitleBytes caps relayed titles. Anything longer is dropped as malformed.
const maxTitleBytes = 512

type Envelope struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinRequest struct {
	DocumentID string `json:"documentId"`
	ShareToken string `json:"shareToken,omitempty"`
}

type DocumentLoaded struct {
	DocumentID string          `json:"documentId"`
	Title      string          `json:"title"`
	Permission string          `json:"permission"`
	Payload    json.RawMessage `json:"payload"`
}

type ParticipantJoined struct {
	Participant        Participant   `json:"participant"`
	ActiveParticipants []Participant `json:"activeParticipants"`
}

type ParticipantLeft struct {
	UserID             string        `json:"userId"`
	Username           string        `json:"username"`
	ActiveParticipants []Participant `json:"activeParticipants"`
}

type CursorUpdate struct {
	Index  *int `json:"index"`
	Length *int `json:"length"`
}

type CursorBroadcast struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Color    string `json:"color"`
	Index    int    `json:"index"`
	Length   int    `json:"length"`
}

type SaveAck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type SaveCompleted struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type AccessError struct {
	Message string `json:"message"`
}

var errEmptyPayload = errors.New("empty payload")

func parseJoin(raw json.RawMessage) (JoinRequest, error) {
	var req JoinRequest
	if len(raw) == 0 {
		return req, errEmptyPayload
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, err
	}
	if req.DocumentID == "" {
		return req, errors.New("missing documentId")
	}
	return req, nil
}

func parseCursor(raw json.RawMessage) (CursorUpdate, error) {
	var cur CursorUpdate
	if len(raw) == 0 {
		return cur, errEmptyPayload
	}
	if err := json.Unmarshal(raw, &cur); err != nil {
		return cur, err
	}
	if cur.Index == nil || cur.Length == nil {
		return cur, errors.New("missing index or length")
	}
	return cur, nil
}

func parseTitle(raw json.RawMessage) (string, error) {
	var title string
	if len(raw) == 0 {
		return "", errEmptyPayload
	}
	if err := json.Unmarshal(raw, &title); err != nil {
		return "", err
	}
	if len(title) > maxTitleBytes {
		return "", fmt.Errorf("title exceeds %d bytes", maxTitleBytes)
	}
	if !utf8.ValidString(title) {
		return "", errors.New("title is not valid UTF-8")
	}
	return title, nil
}

// validateOpaque checks an edit delta or save payload: the relay treats it
// as opaque but it must at least be well-formed, non-null JSON.
func validateOpaque(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return errEmptyPayload
	}
	if !json.Valid(raw) {
		return errors.New("payload is not valid JSON")
	}
	return nil
}

// encodeEvent marshals an outbound envelope. Payload may be any
// marshalable value, including a json.RawMessage relayed verbatim.
func encodeEvent(eventType, ref string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Ref: ref, Payload: body})
}
