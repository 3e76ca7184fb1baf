// Package trigger turns Firestore document CloudEvents delivered by Eventarc into claims.DocumentChange values.
package trigger

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/googleapis/google-cloudevents-go/cloud/firestoredata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/chatafisha/claims-service/internal/claims"
)

const (
	eventTypePrefix  = "google.cloud.firestore.document.v1."
	eventTypeCreated = eventTypePrefix + "created"
	eventTypeUpdated = eventTypePrefix + "updated"
	eventTypeWritten = eventTypePrefix + "written"
	eventTypeDeleted = eventTypePrefix + "deleted"

	documentsMarker = "/documents/"
)

// ErrIgnored marks a well-formed event that the synchronizer has no interest in.
var ErrIgnored = errors.New("event ignored")

// Decoder extracts user document changes for one collection.
type Decoder struct {
	collection string
}

// NewDecoder returns a Decoder accepting documents directly under collection.
func NewDecoder(collection string) *Decoder {
	return &Decoder{collection: collection}
}

// DecodeRequest reads a binary or structured mode CloudEvent from r.
func (d *Decoder) DecodeRequest(r *http.Request) (claims.DocumentChange, error) {
	event, err := cloudevents.NewEventFromHTTPRequest(r)
	if err != nil {
		return claims.DocumentChange{}, fmt.Errorf("read cloudevent: %w", err)
	}
	return d.Decode(event.ID(), event.Type(), event.DataContentType(), event.Data())
}

// Decode converts a Firestore DocumentEventData payload into a DocumentChange.
func (d *Decoder) Decode(eventID, eventType, contentType string, data []byte) (claims.DocumentChange, error) {
	switch eventType {
	case eventTypeCreated, eventTypeUpdated, eventTypeWritten:
	case eventTypeDeleted:
		return claims.DocumentChange{}, ErrIgnored
	default:
		return claims.DocumentChange{}, fmt.Errorf("unsupported event type %q", eventType)
	}

	var payload firestoredata.DocumentEventData
	if err := unmarshalPayload(contentType, data, &payload); err != nil {
		return claims.DocumentChange{}, err
	}

	after := payload.GetValue()
	if after == nil {
		// written events carry no value when the document was deleted.
		return claims.DocumentChange{}, ErrIgnored
	}

	collection, key, err := splitDocumentName(after.GetName())
	if err != nil {
		return claims.DocumentChange{}, err
	}
	if collection != d.collection {
		return claims.DocumentChange{}, ErrIgnored
	}

	change := claims.DocumentChange{
		EventID: eventID,
		Key:     key,
		After:   snapshotOf(after),
	}
	if before := payload.GetOldValue(); before != nil && before.GetName() != "" {
		snap := snapshotOf(before)
		change.Before = &snap
	}
	return change, nil
}

func unmarshalPayload(contentType string, data []byte, msg proto.Message) error {
	if len(data) == 0 {
		return errors.New("event has no data")
	}

	mediaType, _, _ := strings.Cut(strings.ToLower(contentType), ";")
	switch strings.TrimSpace(mediaType) {
	case "application/json":
		if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(data, msg); err != nil {
			return fmt.Errorf("decode json document event: %w", err)
		}
	default:
		if err := proto.Unmarshal(data, msg); err != nil {
			return fmt.Errorf("decode protobuf document event: %w", err)
		}
	}
	return nil
}

// splitDocumentName parses projects/{p}/databases/{d}/documents/{collection path}/{key}.
func splitDocumentName(name string) (string, string, error) {
	idx := strings.Index(name, documentsMarker)
	if idx < 0 {
		return "", "", fmt.Errorf("malformed document name %q", name)
	}
	path := name[idx+len(documentsMarker):]
	slash := strings.LastIndex(path, "/")
	if slash <= 0 || slash == len(path)-1 {
		return "", "", fmt.Errorf("malformed document name %q", name)
	}
	return path[:slash], path[slash+1:], nil
}

func snapshotOf(doc *firestoredata.Document) claims.Snapshot {
	fields := doc.GetFields()
	return claims.Snapshot{
		Role:          claims.ParseRole(fields["role"].GetStringValue()),
		ClaimsUpdated: fields["claimsUpdated"].GetBooleanValue(),
	}
}
