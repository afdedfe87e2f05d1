package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/responder/core/logger"
	"github.com/kilianp07/responder/core/model"
)

// DecisionProcess stands in for the external decision process: it listens
// for event declarations and answers each with proposals from the fleet.
type DecisionProcess struct {
	Fleet         []string
	ProposalTopic string
	Strategy      ProposalStrategy
	Logger        logger.Logger

	pub   publisher
	rngMu sync.Mutex
	rng   *rand.Rand
	queue chan model.Proposal
}

// NewDecisionProcess creates a process answering with the given strategy.
func NewDecisionProcess(fleet []string, proposalTopic string, strat ProposalStrategy, seed int64, log logger.Logger) *DecisionProcess {
	return &DecisionProcess{
		Fleet:         fleet,
		ProposalTopic: proposalTopic,
		Strategy:      strat,
		Logger:        log,
		rng:           rand.New(rand.NewSource(seed)),
		queue:         make(chan model.Proposal, 256),
	}
}

// Subscribe listens for declarations on topic. It is called on every
// (re)connection.
func (d *DecisionProcess) Subscribe(cli paho.Client, topic string) {
	if token := cli.Subscribe(topic, 1, d.onDeclaration); token.Wait() && token.Error() != nil {
		d.Logger.Errorf("subscribe %s: %v", topic, token.Error())
		return
	}
	d.Logger.Infof("answering declarations on %s with %d vehicles", topic, len(d.Fleet))
}

// Run publishes queued proposals with the given number of workers until ctx
// is done.
func (d *DecisionProcess) Run(ctx context.Context, pub publisher, workers int) {
	d.pub = pub
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx)
		}()
	}
	wg.Wait()
}

func (d *DecisionProcess) onDeclaration(_ paho.Client, msg paho.Message) {
	var decl model.EventDeclaration
	if err := json.Unmarshal(msg.Payload(), &decl); err != nil || decl.EventID == "" {
		d.Logger.Warnf("decode declaration: %v", err)
		return
	}
	d.enqueue(decl)
}

func (d *DecisionProcess) enqueue(decl model.EventDeclaration) {
	d.rngMu.Lock()
	picked := Candidates(d.rng, d.Fleet, decl)
	d.rngMu.Unlock()
	d.Logger.Infof("event %s severity=%d: %d candidate(s)", decl.EventID, decl.SeverityID, len(picked))
	for _, id := range picked {
		select {
		case d.queue <- model.Proposal{EventID: decl.EventID, VehicleID: id}:
		default:
			d.Logger.Warnf("proposal queue full, dropping %s/%s", decl.EventID, id)
		}
	}
}

func (d *DecisionProcess) worker(ctx context.Context) {
	for {
		select {
		case p := <-d.queue:
			if err := d.Strategy.Propose(ctx, d.pub, d.ProposalTopic, p); err != nil {
				d.Logger.Errorf("propose %s/%s: %v", p.EventID, p.VehicleID, err)
			}
		case <-ctx.Done():
			return
		}
	}
}
