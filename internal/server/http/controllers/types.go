package controllers

import (
	"encoding/json"

	channelsvc "github.com/rzbill/taskboard/internal/services/channels"
	pebblestore "github.com/rzbill/taskboard/internal/storage/pebble"
)

// publishReq is the body of POST /v1/channels/publish. Data is any JSON
// value and is carried through verbatim.
type publishReq struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Sender  string          `json:"sender"`
	Data    json.RawMessage `json:"data"`
}

type publishResp struct {
	Seq uint64 `json:"seq"`
}

type statsResp struct {
	Channels          []channelsvc.ChannelStats   `json:"channels"`
	ActiveSubscribers int64                       `json:"activeSubscribers"`
	Storage           pebblestore.CounterSnapshot `json:"storage"`
}
