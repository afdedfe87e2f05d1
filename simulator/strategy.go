package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/responder/core/model"
)

// publisher is the part of paho.Client the strategies need.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// ProposalStrategy defines how a vehicle answers a declaration.
type ProposalStrategy interface {
	Propose(ctx context.Context, pub publisher, topic string, p model.Proposal) error
}

// RandomProposal declines with probability 1-AcceptRate, drops the answer
// with probability DropRate and waits Delay before publishing.
type RandomProposal struct {
	Delay      time.Duration
	AcceptRate float64
	DropRate   float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomProposal creates a strategy seeded with seed.
func NewRandomProposal(delay time.Duration, acceptRate, dropRate float64, seed int64) *RandomProposal {
	return &RandomProposal{Delay: delay, AcceptRate: acceptRate, DropRate: dropRate, rng: rand.New(rand.NewSource(seed))}
}

func (r *RandomProposal) roll() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// Propose implements ProposalStrategy.
func (r *RandomProposal) Propose(ctx context.Context, pub publisher, topic string, p model.Proposal) error {
	if r.DropRate > 0 && r.roll() < r.DropRate {
		return nil
	}
	p.Accepted = r.roll() < r.AcceptRate
	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return publishProposal(pub, topic, p)
}

func publishProposal(pub publisher, topic string, p model.Proposal) error {
	if p.IssuedAt.IsZero() {
		p.IssuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}
	token := pub.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("proposal publish timeout for %s", p.VehicleID)
	}
	return token.Error()
}
