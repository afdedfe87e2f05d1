package mqtt

import (
	"context"

	"github.com/kilianp07/responder/core/model"
)

// Publisher sends proposal requests to the external decision process.
// Delivery guarantees belong to the channel, not to the caller.
type Publisher interface {
	PublishEvent(ctx context.Context, decl model.EventDeclaration) error
}

// ProposalHandler consumes proposals delivered by the inbound channel.
// A returned error leaves the message unacknowledged so the broker redelivers it.
type ProposalHandler interface {
	Ingest(ctx context.Context, p model.Proposal) error
}

// ProposalHandlerFunc adapts a function to ProposalHandler.
type ProposalHandlerFunc func(ctx context.Context, p model.Proposal) error

func (f ProposalHandlerFunc) Ingest(ctx context.Context, p model.Proposal) error { return f(ctx, p) }

// NopPublisher drops every declaration.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, model.EventDeclaration) error { return nil }
