package sync

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// Syncer is the sync entry point an event handler delegates to.
type Syncer interface {
	Sync(ctx context.Context, contactID uuid.UUID, after ContactRecord, before *ContactRecord, isUpdate bool) error
}

// HandleContactEvent decodes a contact change event and syncs it.
// Events without a target are ignored. Any failure is logged and returned as "fatal error: <message>"
// so the platform surfaces it to administrators.
func HandleContactEvent(ctx context.Context, s Syncer, data []byte) error {
	event, err := DecodeContactEvent(data)
	if err != nil {
		log.Printf("Fatal error: %v", err)
		return fmt.Errorf("fatal error: %w", err)
	}
	if !event.HasTarget {
		return nil
	}
	err = s.Sync(ctx, event.ContactID, event.PostImage, event.PreImage, event.IsUpdate())
	if err != nil {
		log.Printf("Fatal error: %v (contact %s, message %s, source %s)", err, event.ContactID, event.MessageName, event.Source)
		return fmt.Errorf("fatal error: %w", err)
	}
	return nil
}
