package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"github.com/sala/chat-api/internal/chat"
	"github.com/sala/chat-api/internal/message"
	"github.com/sala/chat-api/internal/presence"
)

type (
	// errorBody is the error response shape: a string for single failures,
	// a list for validation errors.
	errorBody struct {
		Message interface{} `json:"message"`
	}

	participantName struct {
		Name string `json:"name"`
	}
)

// HandleRegister creates a participant: 201 on success, 422 with the error
// list on invalid payload, 409 when the name is taken.
func HandleRegister(pres PresenceService, log *logrus.Entry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload chat.ParticipantPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		p, err := pres.Register(r.Context(), payload)
		if err != nil {
			var verr *chat.ValidationError
			switch {
			case errors.As(err, &verr):
				render.Status(r, http.StatusUnprocessableEntity)
				render.JSON(w, r, errorBody{Message: verr.Errors})
			case errors.Is(err, presence.ErrConflict):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, errorBody{Message: "participant already exists"})
			default:
				log.WithError(err).Error("register failed")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, participantName{Name: p.Name})
	}
}

// HandleListParticipants returns the registered names, name field only.
func HandleListParticipants(pres PresenceService, log *logrus.Entry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := pres.ListNames(r.Context())
		if err != nil {
			log.WithError(err).Error("list participants failed")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		out := make([]participantName, 0, len(names))
		for _, n := range names {
			out = append(out, participantName{Name: n})
		}
		render.JSON(w, r, out)
	}
}

// HandleHeartbeat refreshes the caller's staleness clock: 200 on success,
// 404 when the caller is unknown.
func HandleHeartbeat(pres PresenceService, log *logrus.Entry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.Header.Get(UserHeader)

		err := pres.Heartbeat(r.Context(), name)
		if err != nil {
			if errors.Is(err, presence.ErrNotFound) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			log.WithError(err).Error("heartbeat failed")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

// HandlePostMessage appends a message from the caller: 201 on success, 422
// with the error list on invalid payload, 422 when the caller is unknown.
func HandlePostMessage(msgs MessageService, log *logrus.Entry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sender := r.Header.Get(UserHeader)

		var payload chat.MessagePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		_, err := msgs.Post(r.Context(), sender, payload)
		if err != nil {
			var verr *chat.ValidationError
			switch {
			case errors.As(err, &verr):
				render.Status(r, http.StatusUnprocessableEntity)
				render.JSON(w, r, errorBody{Message: verr.Errors})
			case errors.Is(err, message.ErrNotRegistered):
				render.Status(r, http.StatusUnprocessableEntity)
				render.JSON(w, r, errorBody{Message: "sender is not logged in"})
			default:
				log.WithError(err).Error("post message failed")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}

		w.WriteHeader(http.StatusCreated)
	}
}

// HandleListMessages returns the messages visible to the caller in
// chronological order, truncated to the most recent `limit` when the query
// parameter is a valid non-negative integer. Unknown callers get 401.
func HandleListMessages(msgs MessageService, log *logrus.Entry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester := r.Header.Get(UserHeader)
		limit := parseLimit(r.URL.Query().Get("limit"))

		visible, err := msgs.List(r.Context(), requester, limit)
		if err != nil {
			if errors.Is(err, message.ErrUnauthorized) {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			log.WithError(err).Error("list messages failed")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		if visible == nil {
			visible = []chat.Message{}
		}
		render.JSON(w, r, visible)
	}
}

// parseLimit interprets the limit query parameter. Anything that is not a
// non-negative integer means "no limit".
func parseLimit(raw string) int {
	if raw == "" {
		return -1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return -1
	}
	return n
}
