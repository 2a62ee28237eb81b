package server

import (
	"net/http"
	"net/url"

	"spotiqueue/core/live"
	"spotiqueue/core/slack"
	"spotiqueue/logger"
)

// SlackActionsHandler handles approve/decline button presses from Slack.
// Wrapped in SlackVerifyMiddleware, which has already read and verified
// the body.
func (h *APIHandler) SlackActionsHandler(w http.ResponseWriter, r *http.Request, body []byte) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	action, err := slack.ParseActionPayload(form.Get("payload"))
	if err != nil {
		logger.Warn("unparseable slack action", logger.ErrorField(err))
		writeError(w, http.StatusBadRequest, "unrecognized action payload")
		return
	}

	s, err := h.settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	reviewer := action.User
	if reviewer == "" {
		reviewer = "slack:" + action.UserID
	}

	switch action.Verb {
	case slack.ActionApprove:
		entry, err := h.workflow.Approve(r.Context(), action.EntryID, reviewer, s)
		if err != nil {
			writePrequeueError(w, err)
			return
		}
		h.hub.Broadcast(live.MsgTypePrequeue, entry)
		writeJSON(w, http.StatusOK, map[string]string{"text": "Queued: " + entry.TrackName})
	case slack.ActionDecline:
		entry, err := h.workflow.Decline(r.Context(), action.EntryID, reviewer)
		if err != nil {
			writePrequeueError(w, err)
			return
		}
		h.hub.Broadcast(live.MsgTypePrequeue, entry)
		writeJSON(w, http.StatusOK, map[string]string{"text": "Declined: " + entry.TrackName})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
