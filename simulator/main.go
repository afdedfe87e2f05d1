// Command simulator answers the coordinator's proposal requests like the
// external decision process would, so the service can be exercised end to
// end against a local broker.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/responder/core/model"
	"github.com/kilianp07/responder/infra/logger"
)

func main() {
	cfg := parseFlags()
	log := logger.New("simulator")
	if err := (&cfg).Validate(); err != nil {
		log.Errorf("invalid config: %v", err)
		os.Exit(2)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	vehicles := GenerateFleet(rng, cfg.FleetSize, model.Location{Latitude: 45.76, Longitude: 4.84})
	if cfg.FleetOut != "" {
		if err := WriteFleet(cfg.FleetOut, vehicles); err != nil {
			log.Errorf("write fleet: %v", err)
			os.Exit(1)
		}
		log.Infof("fleet written to %s", cfg.FleetOut)
	}
	ids := make([]string, len(vehicles))
	for i, v := range vehicles {
		ids[i] = v.ID
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	strat := NewRandomProposal(cfg.Latency, cfg.AcceptRate, cfg.DropRate, cfg.Seed)
	dp := NewDecisionProcess(ids, cfg.ProposalTopic, strat, cfg.Seed, log)
	cli, err := newMQTTClient(cfg.Broker, fmt.Sprintf("decision-sim-%d", time.Now().UnixNano()), func(c paho.Client) {
		dp.Subscribe(c, cfg.EventTopic)
	})
	if err != nil {
		log.Errorf("mqtt connect: %v", err)
		os.Exit(1)
	}
	defer cli.Disconnect(250)

	dp.Run(ctx, cli, cfg.Workers)
	log.Infof("decision simulator stopped")
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.StringVar(&cfg.EventTopic, "event-topic", "responder/events", "topic carrying event declarations")
	flag.StringVar(&cfg.ProposalTopic, "proposal-topic", "responder/proposals", "topic proposals are published to")
	flag.IntVar(&cfg.FleetSize, "fleet-size", 10, "number of simulated vehicles")
	flag.Float64Var(&cfg.AcceptRate, "accept-rate", 0.8, "probability a candidate accepts")
	flag.Float64Var(&cfg.DropRate, "drop-rate", 0, "probability a proposal is never sent")
	flag.DurationVar(&cfg.Latency, "latency", 500*time.Millisecond, "delay before each proposal")
	flag.IntVar(&cfg.Workers, "workers", 5, "concurrent proposal publishers")
	flag.StringVar(&cfg.FleetOut, "fleet-out", "", "write the generated fleet as JSON for fleet import")
	flag.Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "random seed")
	flag.Parse()
	return cfg
}
