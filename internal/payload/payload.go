// Package payload implements the Payload Builder: it translates a
// normalized event into the Policy API's CREATE/UPDATE request shape,
// attaching metadata (spec §4, §6).
package payload

// Request is the JSON body sent to the Policy API for either a CREATE
// or an UPDATE (spec §6). Output/EventID are only set for UPDATE.
type Request struct {
	APIKey    string         `json:"api_key"`
	ProfileID string         `json:"profile_id"`
	UseCaseID string         `json:"use_case_id"`
	EventType string         `json:"event_type"`
	SessionID string         `json:"session_id"`
	Input     string         `json:"input"`
	Output    string         `json:"output,omitempty"`
	EventID   string         `json:"event_id,omitempty"`
	Metadata  map[string]any `json:"metadata"`
}

// Identity carries the per-invocation values every payload is stamped
// with, read from RunConfig.
type Identity struct {
	APIKey    string
	ProfileID string
	UseCaseID string
	UserID    string
}

// Builder attaches Identity and call-site metadata to normalized event
// content to produce Policy API request bodies.
type Builder struct {
	identity Identity
}

// New constructs a Builder bound to the run's identity values.
func New(identity Identity) *Builder {
	return &Builder{identity: identity}
}

// Metadata composes the metadata map attached to every request (spec
// §3 OpenEvent.metadata: user_id, tool_name, source, hook_event_name).
func (b *Builder) Metadata(hookName, toolName, source string) map[string]any {
	meta := map[string]any{
		"hook_event_name": hookName,
	}
	if b.identity.UserID != "" {
		meta["user_id"] = b.identity.UserID
	}
	if toolName != "" {
		meta["tool_name"] = toolName
	}
	if source != "" {
		meta["source"] = source
	}
	return meta
}

// Create builds a CREATE request body.
func (b *Builder) Create(eventType, sessionID, input string, metadata map[string]any) Request {
	return Request{
		APIKey:    b.identity.APIKey,
		ProfileID: b.identity.ProfileID,
		UseCaseID: b.identity.UseCaseID,
		EventType: eventType,
		SessionID: sessionID,
		Input:     input,
		Metadata:  metadata,
	}
}

// Update builds an UPDATE request body, carrying the event_id returned
// by the corresponding CREATE.
func (b *Builder) Update(eventType, sessionID, eventID, input, output string, metadata map[string]any) Request {
	return Request{
		APIKey:    b.identity.APIKey,
		ProfileID: b.identity.ProfileID,
		UseCaseID: b.identity.UseCaseID,
		EventType: eventType,
		SessionID: sessionID,
		EventID:   eventID,
		Input:     input,
		Output:    output,
		Metadata:  metadata,
	}
}
