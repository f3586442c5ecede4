package controllers

import (
	"net/http"

	"github.com/rzbill/taskboard/internal/channel"
)

// sseSink implements channelsvc.Sink for Server-Sent Events. Each envelope is
// sent as one "data: {json}\n\n" event.
type sseSink struct {
	w http.ResponseWriter
}

// Send writes one envelope event.
func (s sseSink) Send(m channel.Message) error {
	b, err := channel.Encode(m)
	if err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	_, err = s.w.Write([]byte("\n\n"))
	return err
}

// Flush pushes buffered events to the client.
func (s sseSink) Flush() error {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
