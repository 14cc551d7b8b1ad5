package sync

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// ContactEvent holds a decoded contact change event and its trigger metadata.
// It is immutable after decoding.
type ContactEvent struct {
	MessageName string // Create or Update
	ContactID   uuid.UUID
	HasTarget   bool

	// PostImage is the contact after the change, PreImage before it (updates only).
	PostImage ContactRecord
	PreImage  *ContactRecord

	// Trigger metadata
	Source    string
	Depth     int
	UserID    string
	CreatedAt string
}

// IsUpdate reports whether the event is for an update rather than a creation.
func (e ContactEvent) IsUpdate() bool {
	return strings.EqualFold(e.MessageName, "update")
}

// DecodeContactEvent reads a change event encoded as
//
//	{"messageName": "Update", "contactId": "<guid>", "target": {...},
//	 "preImage": {...}, "postImage": {...}}
//
// where the images are contact records as read by ParseContactRecord.
// The target is only checked for presence; without a post image it is used as the contact.
func DecodeContactEvent(data []byte) (ContactEvent, error) {
	var result ContactEvent
	if !gjson.ValidBytes(data) {
		return result, errors.New("invalid contact event json")
	}
	event := gjson.ParseBytes(data)
	result.MessageName = event.Get("messageName").String()
	result.Source = event.Get("source").String()
	result.Depth = int(event.Get("depth").Int())
	result.UserID = event.Get("userId").String()
	result.CreatedAt = event.Get("createdAt").String()

	target := event.Get("target")
	result.HasTarget = target.Exists() && target.Type != gjson.Null
	if !result.HasTarget {
		return result, nil
	}

	post := event.Get("postImage")
	if !post.Exists() || post.Type == gjson.Null {
		post = target
	}
	var err error
	result.PostImage, err = ParseContactRecord(post.Raw)
	if err != nil {
		return result, fmt.Errorf("invalid post image %w", err)
	}
	if pre := event.Get("preImage"); result.IsUpdate() && pre.Exists() && pre.Type != gjson.Null {
		before, err := ParseContactRecord(pre.Raw)
		if err != nil {
			return result, fmt.Errorf("invalid pre image %w", err)
		}
		result.PreImage = &before
	}

	result.ContactID = result.PostImage.ID
	if id := event.Get("contactId").String(); id != "" {
		result.ContactID, err = uuid.Parse(id)
		if err != nil {
			return result, fmt.Errorf("invalid contact id %q %w", id, err)
		}
	}
	if result.ContactID == uuid.Nil {
		return result, errors.New("contact event has no contact id")
	}
	return result, nil
}
