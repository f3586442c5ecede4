package channel

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Struct field names of the protobuf envelope.
const (
	fieldChannel = "channel"
	fieldEvent   = "event"
	fieldSender  = "sender"
	fieldSentAt  = "sentAt"
	fieldData    = "data"
)

// ToStruct converts m to the protobuf envelope used by the relay. The payload
// travels as its raw JSON text so numbers keep their integer form.
func ToStruct(m Message) *structpb.Struct {
	data := string(m.Data)
	if data == "" {
		data = "null"
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldChannel: structpb.NewStringValue(m.Channel),
		fieldEvent:   structpb.NewStringValue(m.Event),
		fieldSender:  structpb.NewStringValue(m.Sender),
		fieldSentAt:  structpb.NewNumberValue(float64(m.SentAt)),
		fieldData:    structpb.NewStringValue(data),
	}}
}

// FromStruct converts a relay envelope back to a Message.
func FromStruct(s *structpb.Struct) (Message, error) {
	if s == nil {
		return Message{}, errors.New("channel: nil envelope")
	}
	f := s.GetFields()
	m := Message{
		Channel: f[fieldChannel].GetStringValue(),
		Event:   f[fieldEvent].GetStringValue(),
		Sender:  f[fieldSender].GetStringValue(),
		SentAt:  int64(f[fieldSentAt].GetNumberValue()),
	}
	if m.Event == "" {
		return Message{}, errors.New("channel: envelope has no event")
	}
	data := f[fieldData].GetStringValue()
	if data == "" {
		data = "null"
	}
	if !json.Valid([]byte(data)) {
		return Message{}, fmt.Errorf("channel: envelope data is not JSON")
	}
	m.Data = json.RawMessage(data)
	return m, nil
}
