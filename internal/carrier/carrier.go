// Package carrier parses and emits the telephony carrier's media-streaming
// WebSocket JSON event frames (connected/start/media/stop/mark/clear in,
// media/mark out).
package carrier

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// Event names understood on the inbound side.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
	EventClear     = "clear"
)

// TrackInbound/TrackOutbound identify a media frame's direction; outbound
// frames on the inbound socket are the carrier's echo of what we sent and
// MUST be discarded rather than fed into the session buffer.
const (
	TrackInbound  = "inbound"
	TrackOutbound = "outbound"
)

// Envelope is the outer shape of every inbound frame: a discriminant event
// name plus loosely-typed nested payloads, since carriers attach additional
// fields (custom_parameters in particular) that a rigid struct can't predict.
type Envelope struct {
	Event     string          `json:"event"`
	StreamSID string          `json:"streamSid,omitempty"`
	Start     json.RawMessage `json:"start,omitempty"`
	Media     json.RawMessage `json:"media,omitempty"`
	Stop      json.RawMessage `json:"stop,omitempty"`
	Mark      json.RawMessage `json:"mark,omitempty"`

	// CustomParameters may appear directly on a `connected` frame.
	CustomParameters json.RawMessage `json:"custom_parameters,omitempty"`
}

// StartPayload is the nested `start` object of a `start` event.
type StartPayload struct {
	StreamSID        string          `json:"streamSid"`
	CustomParameters json.RawMessage `json:"custom_parameters,omitempty"`
}

// MediaPayload is the nested `media` object of a `media` event.
type MediaPayload struct {
	Track   string `json:"track"`
	Payload string `json:"payload"`
}

// StopPayload is the nested `stop` object of a `stop` event.
type StopPayload struct {
	Reason string `json:"reason,omitempty"`
}

// MarkPayload is the nested `mark` object of a `mark` event.
type MarkPayload struct {
	Name string `json:"name"`
}

// Parse decodes a raw inbound WS text frame into an Envelope.
func Parse(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("carrier: parse frame: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("carrier: frame missing event field")
	}
	return &env, nil
}

// ParseStart decodes the `start` nested payload.
func (e *Envelope) ParseStart() (*StartPayload, error) {
	var sp StartPayload
	if err := json.Unmarshal(e.Start, &sp); err != nil {
		return nil, fmt.Errorf("carrier: parse start payload: %w", err)
	}
	return &sp, nil
}

// ParseMedia decodes the `media` nested payload.
func (e *Envelope) ParseMedia() (*MediaPayload, error) {
	var mp MediaPayload
	if err := json.Unmarshal(e.Media, &mp); err != nil {
		return nil, fmt.Errorf("carrier: parse media payload: %w", err)
	}
	return &mp, nil
}

// ParseStop decodes the `stop` nested payload, tolerating its absence.
func (e *Envelope) ParseStop() *StopPayload {
	var sp StopPayload
	_ = json.Unmarshal(e.Stop, &sp)
	return &sp
}

// ParseMark decodes the `mark` nested payload.
func (e *Envelope) ParseMark() (*MarkPayload, error) {
	var mp MarkPayload
	if err := json.Unmarshal(e.Mark, &mp); err != nil {
		return nil, fmt.Errorf("carrier: parse mark payload: %w", err)
	}
	return &mp, nil
}

// ExtractCustomParameters flattens an arbitrary-shaped custom_parameters
// JSON object into a string map using gjson, since carriers vary in whether
// values are strings, numbers, or booleans.
func ExtractCustomParameters(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	result := gjson.ParseBytes(raw)
	if !result.IsObject() {
		return nil
	}
	out := make(map[string]string)
	result.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value.String()
		return true
	})
	return out
}

// DecodeMediaPayload base64-decodes an inbound media payload into raw PCM.
func DecodeMediaPayload(payload string) ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("carrier: decode media payload: %w", err)
	}
	return pcm, nil
}

// OutboundMedia is one outbound `media` frame.
type OutboundMedia struct {
	Event          string               `json:"event"`
	StreamSID      string               `json:"streamSid"`
	SequenceNumber string               `json:"sequenceNumber"`
	Media          OutboundMediaPayload `json:"media"`
}

// OutboundMediaPayload is the nested payload of OutboundMedia.
type OutboundMediaPayload struct {
	Payload string `json:"payload"`
}

// BuildOutboundMedia encodes pcm as a base64 outbound `media` frame carrying
// streamSID and sequenceNumber (string-encoded decimal per the wire protocol).
func BuildOutboundMedia(streamSID string, sequenceNumber uint64, pcm []byte) ([]byte, error) {
	frame := OutboundMedia{
		Event:          EventMedia,
		StreamSID:      streamSID,
		SequenceNumber: strconv.FormatUint(sequenceNumber, 10),
		Media:          OutboundMediaPayload{Payload: base64.StdEncoding.EncodeToString(pcm)},
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("carrier: marshal outbound media: %w", err)
	}
	return data, nil
}

// OutboundMark is one outbound `mark` frame.
type OutboundMark struct {
	Event     string              `json:"event"`
	StreamSID string              `json:"streamSid"`
	Mark      OutboundMarkPayload `json:"mark"`
}

// OutboundMarkPayload is the nested payload of OutboundMark.
type OutboundMarkPayload struct {
	Name string `json:"name"`
}

// BuildOutboundMark encodes an outbound `mark` frame named name.
func BuildOutboundMark(streamSID, name string) ([]byte, error) {
	frame := OutboundMark{
		Event:     EventMark,
		StreamSID: streamSID,
		Mark:      OutboundMarkPayload{Name: name},
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("carrier: marshal outbound mark: %w", err)
	}
	return data, nil
}
