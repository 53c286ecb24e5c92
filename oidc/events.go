// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

// EventType identifies an Event.
type EventType string

const (
	EventConfigLoaded            EventType = "ConfigLoaded"
	EventConfigLoadingFailed     EventType = "ConfigLoadingFailed"
	EventNewAuthenticationResult EventType = "NewAuthenticationResult"
	EventTokenExpired            EventType = "TokenExpired"
	EventUserDataChanged         EventType = "UserDataChanged"
	EventSilentRenewStarted      EventType = "SilentRenewStarted"
	EventSilentRenewFailed       EventType = "SilentRenewFailed"
	EventCheckingAuthFinished    EventType = "CheckingAuthFinished"
)

// Event is published when the state of a config changes.
type Event struct {
	Type     EventType
	ConfigID string

	// Value depends on Type: an error for the failure events,
	// *AuthenticationResult for EventNewAuthenticationResult, the user data
	// for EventUserDataChanged.
	Value interface{}
}

// AuthenticationResult is the Value of EventNewAuthenticationResult.
type AuthenticationResult struct {
	IsAuthenticated bool
	IsRenewProcess  bool
	Reason          ValidationReason
}

// EventPublisher receives events. Publish must not block.
type EventPublisher interface {
	Publish(Event)
}

// EventPublisherFunc adapts a function to an EventPublisher.
type EventPublisherFunc func(Event)

// Publish implements EventPublisher.
func (f EventPublisherFunc) Publish(e Event) { f(e) }

type noEvents struct{}

func (noEvents) Publish(Event) {}
