package socket

import (
	"context"
	"errors"
	"math/rand/v2"

	"coedit/internal/document/repository"
	"coedit/internal/document/service"
	"coedit/pkg/logger"
	"coedit/pkg/metrics"
)

// palette for participant colors. Collisions within a room are allowed;
// color is cosmetic, not identifying.
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#008080",
}

// Hub is the connection gateway. It admits joins through the arbiter,
// records membership in the registry, relays edit/cursor/title traffic to
// the rest of the room, and checkpoints saves to the store. A failure on
// one connection's event never disconnects another connection.
type Hub struct {
	Registry *Registry
	store    *repository.DocumentRepository
	arbiter  *service.AccessArbiter
}

func NewHub(registry *Registry, store *repository.DocumentRepository, arbiter *service.AccessArbiter) *Hub {
	return &Hub{Registry: registry, store: store, arbiter: arbiter}
}

// Dispatch routes one inbound envelope from a client's read pump. Events
// other than join-document from a connection that has not completed a join
// are dropped silently: there is no room to relay into.
func (h *Hub) Dispatch(c *Client, env Envelope) {
	switch env.Type {
	case EventJoinDocument:
		h.handleJoin(c, env)
	case EventEditDelta, EventCursorUpdate, EventTitleUpdate:
		h.handleRelay(c, env)
	case EventSaveDocument:
		h.handleSave(c, env)
	default:
		logger.Sugar.Warnf("Unknown event type %q from conn %s", env.Type, c.ID)
		metrics.DroppedEvents.WithLabelValues("unknown-type").Inc()
	}
}

func (h *Hub) handleJoin(c *Client, env Envelope) {
	req, err := parseJoin(env.Payload)
	if err != nil {
		logger.Sugar.Warnf("Malformed join request from conn %s: %v", c.ID, err)
		metrics.DroppedEvents.WithLabelValues("malformed").Inc()
		h.sendAccessError(c, env.Ref, "malformed join request")
		return
	}

	ctx := context.Background()
	record, err := h.store.FetchOrCreate(ctx, req.DocumentID, c.UserID)
	if err != nil {
		h.sendAccessError(c, env.Ref, "document is unavailable")
		return
	}

	perm, err := h.arbiter.Authorize(ctx, c.UserID, record.ID, req.ShareToken)
	if err != nil {
		if errors.Is(err, service.ErrAccessDenied) || errors.Is(err, service.ErrDocumentNotFound) {
			logger.Sugar.Warnf("Join denied for user %s on doc %s", c.UserID, record.ID)
			h.sendAccessError(c, env.Ref, "you do not have access to this document")
		} else {
			logger.Sugar.Errorf("Authorization failed for user %s on doc %s: %v", c.UserID, record.ID, err)
			h.sendAccessError(c, env.Ref, "authorization is temporarily unavailable")
		}
		return
	}

	// One active document per connection: an admitted join to a second
	// document displaces the first. A denied or failed join must not; the
	// connection's current membership only changes past this point.
	if c.DocID != "" && c.DocID != record.ID {
		h.leaveRoom(c)
	}

	c.DocID = record.ID
	c.Permission = perm
	c.Color = palette[rand.IntN(len(palette))]

	clients, roster := h.Registry.Join(record.ID, c)

	if loaded, err := encodeEvent(EventDocumentLoaded, env.Ref, DocumentLoaded{
		DocumentID: record.ID,
		Title:      record.Title,
		Permission: string(perm),
		Payload:    record.Payload,
	}); err == nil {
		c.deliver(loaded)
	}

	if joined, err := encodeEvent(EventParticipantJoined, "", ParticipantJoined{
		Participant:        c.participant(),
		ActiveParticipants: roster,
	}); err == nil {
		for _, member := range clients {
			member.deliver(joined)
		}
	}

	logger.Sugar.Infof("User %s joined doc %s as %s", c.UserID, record.ID, perm)
}

func (h *Hub) handleRelay(c *Client, env Envelope) {
	if c.DocID == "" {
		metrics.DroppedEvents.WithLabelValues("not-joined").Inc()
		return
	}

	var outType string
	var payload interface{}

	switch env.Type {
	case EventEditDelta:
		if !c.Permission.CanEdit() {
			logger.Sugar.Warnf("Dropping edit from viewer %s on doc %s", c.UserID, c.DocID)
			metrics.DroppedEvents.WithLabelValues("permission").Inc()
			return
		}
		if err := validateOpaque(env.Payload); err != nil {
			logger.Sugar.Warnf("Dropping malformed edit delta from %s: %v", c.UserID, err)
			metrics.DroppedEvents.WithLabelValues("malformed").Inc()
			return
		}
		outType = EventEditDeltaReceived
		payload = env.Payload

	case EventCursorUpdate:
		cur, err := parseCursor(env.Payload)
		if err != nil {
			logger.Sugar.Warnf("Dropping malformed cursor update from %s: %v", c.UserID, err)
			metrics.DroppedEvents.WithLabelValues("malformed").Inc()
			return
		}
		outType = EventCursorBroadcast
		payload = CursorBroadcast{
			UserID:   c.UserID,
			Username: c.Username,
			Color:    c.Color,
			Index:    *cur.Index,
			Length:   *cur.Length,
		}

	case EventTitleUpdate:
		if !c.Permission.CanEdit() {
			logger.Sugar.Warnf("Dropping title update from viewer %s on doc %s", c.UserID, c.DocID)
			metrics.DroppedEvents.WithLabelValues("permission").Inc()
			return
		}
		title, err := parseTitle(env.Payload)
		if err != nil {
			logger.Sugar.Warnf("Dropping malformed title update from %s: %v", c.UserID, err)
			metrics.DroppedEvents.WithLabelValues("malformed").Inc()
			return
		}
		outType = EventTitleBroadcast
		payload = title
	}

	frame, err := encodeEvent(outType, "", payload)
	if err != nil {
		logger.Sugar.Errorf("Error encoding relay frame: %v", err)
		return
	}
	// Never back to the sender.
	for _, member := range h.Registry.Clients(c.DocID) {
		if member.ID == c.ID {
			continue
		}
		member.deliver(frame)
	}
	metrics.RelayedEvents.WithLabelValues(outType).Inc()
}

func (h *Hub) handleSave(c *Client, env Envelope) {
	if c.DocID == "" {
		metrics.DroppedEvents.WithLabelValues("not-joined").Inc()
		return
	}
	if !c.Permission.CanEdit() {
		h.sendSaveAck(c, env.Ref, EventSaveFailed, "only editors can save")
		metrics.Saves.WithLabelValues("denied").Inc()
		return
	}
	if err := validateOpaque(env.Payload); err != nil {
		h.sendSaveAck(c, env.Ref, EventSaveFailed, "malformed payload")
		metrics.Saves.WithLabelValues("malformed").Inc()
		return
	}

	// Last writer wins by arrival order; concurrent saves on the same
	// document may overwrite each other.
	if err := h.store.UpdatePayload(context.Background(), c.DocID, env.Payload); err != nil {
		h.sendSaveAck(c, env.Ref, EventSaveFailed, "store write failed")
		metrics.Saves.WithLabelValues("error").Inc()
		return
	}
	h.sendSaveAck(c, env.Ref, EventSaveAcknowledged, "")
	metrics.Saves.WithLabelValues("ok").Inc()

	// Advisory notice to the rest of the room; does not imply their local
	// state is synchronized.
	done, err := encodeEvent(EventSaveCompleted, "", SaveCompleted{UserID: c.UserID, Username: c.Username})
	if err != nil {
		return
	}
	for _, member := range h.Registry.Clients(c.DocID) {
		if member.ID == c.ID {
			continue
		}
		member.deliver(done)
	}
}

// CloseRoom force-disconnects every participant of a document, used when
// the document is deleted. Closing the transport makes each read pump run
// its normal teardown, so the room is pruned through the usual leave path.
func (h *Hub) CloseRoom(docID string) {
	for _, member := range h.Registry.Clients(docID) {
		member.conn.Close()
	}
}

// Disconnect tears down a connection's room membership. It is idempotent
// and a no-op for connections that never completed a join.
func (h *Hub) Disconnect(c *Client) {
	if c.DocID == "" {
		return
	}
	h.leaveRoom(c)
}

func (h *Hub) leaveRoom(c *Client) {
	docID := c.DocID
	c.DocID = ""
	c.Permission = ""

	removed, survivors, roster := h.Registry.Leave(docID, c.ID)
	if removed == nil {
		return
	}
	logger.Sugar.Infof("User %s left doc %s", removed.UserID, docID)
	if len(survivors) == 0 {
		return
	}

	left, err := encodeEvent(EventParticipantLeft, "", ParticipantLeft{
		UserID:             removed.UserID,
		Username:           removed.Username,
		ActiveParticipants: roster,
	})
	if err != nil {
		logger.Sugar.Errorf("Error encoding participant-left: %v", err)
		return
	}
	for _, member := range survivors {
		member.deliver(left)
	}
}

func (h *Hub) sendAccessError(c *Client, ref, message string) {
	if frame, err := encodeEvent(EventAccessError, ref, AccessError{Message: message}); err == nil {
		c.deliver(frame)
	}
}

func (h *Hub) sendSaveAck(c *Client, ref, eventType, reason string) {
	ack := SaveAck{Status: "ok"}
	if eventType == EventSaveFailed {
		ack = SaveAck{Status: "error", Error: reason}
	}
	if frame, err := encodeEvent(eventType, ref, ack); err == nil {
		c.deliver(frame)
	}
}
