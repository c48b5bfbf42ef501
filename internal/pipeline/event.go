package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidEvent is returned for an envelope without a Records array.
var ErrInvalidEvent = errors.New("invalid event structure: 'Records' field missing or invalid")

// Event is an object-created notification in the S3 event layout.
type Event struct {
	Records []EventRecord `json:"Records"`
}

// EventRecord names one created object.
type EventRecord struct {
	S3 struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key string `json:"key"`
		} `json:"object"`
	} `json:"s3"`
}

// Bucket returns the bucket the object was written to.
func (r EventRecord) Bucket() string { return r.S3.Bucket.Name }

// Key returns the object key.
func (r EventRecord) Key() string { return r.S3.Object.Key }

// ParseEvent decodes an event envelope. Individual records are decoded
// leniently; a record without a key fails when it is processed.
func ParseEvent(data []byte) (Event, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	recs, ok := envelope["Records"]
	if !ok {
		return Event{}, ErrInvalidEvent
	}

	var items []json.RawMessage
	if err := json.Unmarshal(recs, &items); err != nil || items == nil {
		return Event{}, ErrInvalidEvent
	}

	ev := Event{Records: make([]EventRecord, len(items))}
	for i, item := range items {
		// A malformed record keeps its zero value.
		_ = json.Unmarshal(item, &ev.Records[i])
	}
	return ev, nil
}

// EventFor builds the event the object store would emit for keys.
func EventFor(bucket string, keys []string) Event {
	ev := Event{Records: make([]EventRecord, len(keys))}
	for i, key := range keys {
		ev.Records[i].S3.Bucket.Name = bucket
		ev.Records[i].S3.Object.Key = key
	}
	return ev
}
