package bridge

import (
	"encoding/json"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tansive/flowbridge/internal/flowbridge/taxonomy"
	"github.com/tidwall/gjson"
)

const envelopeSchema = `{
	"type": "object",
	"required": ["event"],
	"properties": {
		"event": {"enum": ["ready", "result:success", "result:failure", "result:closed", "transport-error"]},
		"protocolVersion": {"type": "string"},
		"error": {"type": "object"}
	}
}`

var (
	envelope = jsonschema.MustCompileString("flowbridge://envelope.json", envelopeSchema)

	// Flows announcing a protocol version must be compatible with ProtocolVersion.
	supportedProtocol = mustConstraint("^1.0")
)

func mustConstraint(c string) *semver.Constraints {
	cs, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return cs
}

// Decode turns a raw message posted by the surface into an Event. Anything that is not one of
// the five known event envelopes becomes a transport error wrapping ErrUnknownPayload.
// A transport-error posted by the surface carries its cause in the failure shape; without a
// kind or code it is treated as a network failure.
func Decode(msg []byte) Event {
	if !gjson.ValidBytes(msg) {
		return TransportError(ErrUnknownPayload.Msg("message is not valid JSON"))
	}
	var doc any
	if err := json.Unmarshal(msg, &doc); err != nil {
		return TransportError(ErrUnknownPayload.Err(err))
	}
	if err := envelope.Validate(doc); err != nil {
		return TransportError(ErrUnknownPayload.Err(err))
	}

	switch kind := gjson.GetBytes(msg, "event").String(); kind {
	case "ready":
		ev := Event{Kind: EventReady}
		if pv := gjson.GetBytes(msg, "protocolVersion"); pv.Exists() {
			ev.ProtocolVersion = pv.String()
			v, err := semver.NewVersion(ev.ProtocolVersion)
			if err != nil {
				return TransportError(ErrProtocolMismatch.Err(err))
			}
			if !supportedProtocol.Check(v) {
				return TransportError(ErrProtocolMismatch.Msg("unsupported protocol version " + ev.ProtocolVersion))
			}
		}
		return ev
	case "result:success":
		return Event{Kind: EventSuccess}
	case "result:closed":
		return Event{Kind: EventClosed}
	case "result:failure":
		raw, err := rawFailure(msg)
		if err != nil {
			return TransportError(ErrUnknownPayload.Err(err))
		}
		return Event{Kind: EventFailure, Failure: raw}
	case "transport-error":
		raw, err := rawFailure(msg)
		if err != nil {
			return TransportError(ErrUnknownPayload.Err(err))
		}
		if raw.Kind == "" && raw.Code == "" {
			raw.Kind = taxonomy.KindNetwork
		}
		return TransportError(raw)
	default:
		return TransportError(ErrUnknownPayload.Msg("unknown event " + kind))
	}
}

func rawFailure(msg []byte) (taxonomy.RawFailure, error) {
	var raw taxonomy.RawFailure
	if e := gjson.GetBytes(msg, "error"); e.Exists() {
		if err := json.Unmarshal([]byte(e.Raw), &raw); err != nil {
			return taxonomy.RawFailure{}, err
		}
	}
	return raw, nil
}
