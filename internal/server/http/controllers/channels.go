package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/rzbill/taskboard/internal/channel"
	channelsvc "github.com/rzbill/taskboard/internal/services/channels"
)

// ChannelsController exposes publish and SSE subscribe.
type ChannelsController struct {
	ch *channelsvc.Service
}

// NewChannelsController creates a new channels controller.
func NewChannelsController(svc *channelsvc.Service) *ChannelsController {
	return &ChannelsController{ch: svc}
}

// RegisterRoutes registers:
//   - POST /v1/channels/publish
//   - GET  /v1/channels/subscribe?channel=…&filter=…
func (c *ChannelsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/channels/publish", c.handlePublish)
	mux.HandleFunc("/v1/channels/subscribe", c.handleSubscribe)
}

func (c *ChannelsController) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req publishReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	seq, err := c.ch.Publish(r.Context(), channel.Message{
		Channel: req.Channel,
		Event:   req.Event,
		Sender:  req.Sender,
		Data:    req.Data,
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSONStatus(w, http.StatusAccepted, publishResp{Seq: seq})
}

func (c *ChannelsController) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q := r.URL.Query()
	sub, err := c.ch.Subscribe(q.Get("channel"), q.Get("filter"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	sink := sseSink{w: w}
	// commit headers so clients know the subscription is live
	_ = sink.Flush()
	// headers are already sent, so any error just ends the stream
	_ = sub.Run(r.Context(), sink)
}
