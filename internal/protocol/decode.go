package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// ErrMalformedPayload reports an inbound document that is not JSON, has no
// integer messageID, or whose body does not fit the variant its ID names.
var ErrMalformedPayload = errors.New("malformed payload")

var messageIDPath = jp.C("messageID")

// Decode classifies an inbound document by its messageID and decodes the
// matching variant.
func Decode(data []byte) (Answer, error) {
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedPayload)
	}

	id, err := discriminant(messageIDPath.First(doc))
	if err != nil {
		return nil, err
	}

	var a Answer
	switch id {
	case NewObjectID:
		a = &NewObject{}
	case ReloadCompleteID:
		a = &ReloadComplete{}
	case PrintID:
		a = &Print{}
	case ErrorID:
		a = &Error{}
	case CustomID:
		a = &Custom{}
	case ReturnID:
		a = &Return{}
	case GameSavedID:
		return &GameSaved{}, nil
	case ObjectCreatedID:
		a = &ObjectCreated{}
	default:
		return &Unrecognized{ID: id, Raw: append(json.RawMessage(nil), data...)}, nil
	}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, a, err)
	}
	return a, nil
}

func discriminant(v any) (MessageID, error) {
	switch n := v.(type) {
	case int64:
		return MessageID(n), nil
	case float64:
		if n == float64(int64(n)) {
			return MessageID(n), nil
		}
	case nil:
		return 0, fmt.Errorf("%w: missing messageID", ErrMalformedPayload)
	}
	return 0, fmt.Errorf("%w: messageID %v is not an integer", ErrMalformedPayload, v)
}

// Encode renders r as a wire document with its messageID set.
func Encode(r Request) ([]byte, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", r, err)
	}
	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("encode %T: %w", r, err)
	}
	id, _ := json.Marshal(r.MessageID())
	doc["messageID"] = id
	return json.Marshal(doc)
}
