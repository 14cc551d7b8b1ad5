package sync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// SyncAction is the outcome of the sync decision for one contact event.
type SyncAction string

const (
	ActionAdd         SyncAction = "ADD"
	ActionUpdate      SyncAction = "UPDATE"
	ActionUnsubscribe SyncAction = "UNSUBSCRIBE"
	ActionSkip        SyncAction = "SKIP"
)

const (
	StateCodeAttribute      = "statecode"
	DoNotBulkEmailAttribute = "donotbulkemail"
)

// Orchestrator decides, per contact change, whether to add, update or unsubscribe the
// matching ESP subscriber and makes at most one mutating ESP call to do it.
type Orchestrator struct {
	Config      ConfigurationLoader
	Duplicates  *DuplicateEmailChecker
	Mapper      *FieldMappingEngine
	Subscribers SubscriberService
}

func NewOrchestrator(loader ConfigurationLoader, duplicates *DuplicateEmailChecker, mapper *FieldMappingEngine, subscribers SubscriberService) *Orchestrator {
	return &Orchestrator{
		Config:      loader,
		Duplicates:  duplicates,
		Mapper:      mapper,
		Subscribers: subscribers,
	}
}

// Sync synchronises one contact change. before is nil on creation.
// A configuration that cannot be loaded or validated is returned as ConfigurationError. Every later
// failure is returned as a SyncError wrapping its cause.
// A contact without a primary email is skipped without error.
func (o *Orchestrator) Sync(ctx context.Context, contactID uuid.UUID, after ContactRecord, before *ContactRecord, isUpdate bool) error {
	cfg, err := o.Config.LoadConfiguration(ctx)
	if err != nil {
		var cfgErr ConfigurationError
		if errors.As(err, &cfgErr) {
			return err
		}
		return NewConfigurationError("failed to load sync configuration", err)
	}
	scope, err := cfg.Sync.Normalise()
	if err != nil {
		return err
	}

	email := after.TextFor(scope.PrimaryEmailAttribute)
	if email == "" {
		log.Printf("Contact %s has no %s, not syncing", contactID, scope.PrimaryEmailAttribute)
		return nil
	}

	action, err := o.decide(ctx, email, after, before, isUpdate, scope)
	if err != nil {
		return o.failed(contactID, "failed to decide sync action", err)
	}
	log.Printf("Contact %s sync action %s to list %s", contactID, action, scope.ListID)

	switch action {
	case ActionSkip:
		log.Printf("Contact %s email is already in use by another contact in scope, skipping", contactID)
		return nil
	case ActionUnsubscribe:
		if err = o.Subscribers.Unsubscribe(ctx, scope.ListID, email); err != nil {
			return o.failed(contactID, "failed to unsubscribe", err)
		}
		return nil
	case ActionAdd, ActionUpdate:
		fields, err := o.Mapper.MapFields(ctx, after, scope.MappedAttributes)
		if err != nil {
			return o.failed(contactID, "failed to map contact fields", err)
		}
		fields = o.Mapper.PrettifyKeys(ctx, fields)
		if err = o.Subscribers.UpsertSubscriber(ctx, scope.ListID, email, fields); err != nil {
			return o.failed(contactID, "failed to upsert subscriber", err)
		}
		return nil
	default:
		return o.failed(contactID, fmt.Sprintf("unsupported sync action %s", action), nil)
	}
}

func (o *Orchestrator) failed(contactID uuid.UUID, message string, err error) error {
	if err != nil {
		return NewSyncError(contactID.String(), message, err)
	}
	return NewSyncError(contactID.String(), message)
}

func (o *Orchestrator) decide(ctx context.Context, email string, after ContactRecord, before *ContactRecord, isUpdate bool, scope SyncConfiguration) (SyncAction, error) {
	if isUpdate {
		if before != nil && unsubscribeConditionBecameTrue(*before, after) {
			return ActionUnsubscribe, nil
		}
		return ActionUpdate, nil
	}
	duplicate, err := o.Duplicates.IsDuplicate(ctx, scope.PrimaryEmailAttribute, email, scope)
	if err != nil {
		return ActionSkip, err
	}
	if duplicate {
		return ActionSkip, nil
	}
	return ActionAdd, nil
}

// unsubscribeConditionBecameTrue reports whether the contact was deactivated, or opted out
// of bulk email, between the two snapshots.
func unsubscribeConditionBecameTrue(before ContactRecord, after ContactRecord) bool {
	if isActive(before) && !isActive(after) {
		return true
	}
	return !doesNotBulkEmail(before) && doesNotBulkEmail(after)
}

// isActive treats a contact without a statecode as active.
func isActive(c ContactRecord) bool {
	v, exists := c.Get(StateCodeAttribute)
	if !exists {
		return true
	}
	switch v.Kind {
	case KindOptionSet:
		return v.OptionCode == 0
	case KindNumber:
		return v.Number == 0
	default:
		return true
	}
}

func doesNotBulkEmail(c ContactRecord) bool {
	v, exists := c.Get(DoNotBulkEmailAttribute)
	return exists && v.Kind == KindBoolean && v.Boolean
}
