package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/niksmo/keyshop/config"
	"github.com/niksmo/keyshop/internal/adapter"
	"github.com/niksmo/keyshop/pkg/sigctx"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const cleanupDelete = "delete"

func main() {
	sigCtx, closeApp := sigctx.NotifyContext()
	defer closeApp()

	cfg := config.Load()

	cl := createClient(cfg.Broker)
	defer cl.Close()

	printStart(cfg)
	defer printComplete(time.Now())

	err := makeTopics(
		sigCtx, cl,
		cfg.Broker.Partitions, cfg.Broker.ReplicationFactor,
		cfg.Broker.Topics.Purchases,
	)
	if err != nil {
		printFail(err)
	}
}

func createClient(cfg config.Broker) *kadm.Client {
	opts := []kgo.Opt{kgo.SeedBrokers(cfg.SeedBrokers...)}

	if cfg.TLS.Enabled {
		tlsConfig, err := adapter.MakeTLSConfig(
			cfg.TLS.CA, cfg.TLS.Cert, cfg.TLS.Key,
		)
		if err != nil {
			panic(err)
		}
		opts = append(opts, kgo.DialTLSConfig(tlsConfig))
	}

	cl, err := kadm.NewOptClient(opts...)
	if err != nil {
		panic(err) // develop mistake
	}
	return cl
}

func makeTopics(
	ctx context.Context,
	cl *kadm.Client,
	partitions int32,
	replicationFactor int16,
	topics ...string,
) error {
	var (
		cleanupPolicy = cleanupDelete
		minISR        = "1"
	)

	topicConfig := map[string]*string{
		"cleanup.policy":      &cleanupPolicy,
		"min.insync.replicas": &minISR,
	}

	responses, err := cl.CreateTopics(
		ctx,
		partitions,
		replicationFactor,
		topicConfig,
		topics...,
	)
	if err != nil {
		return err
	}

	var errs []error
	for _, res := range responses.Sorted() {
		if err := res.Err; err != nil {
			if errors.Is(err, kerr.TopicAlreadyExists) {
				fmt.Printf("topic: %q already exists\n", res.Topic)
			} else {
				errs = append(errs, err)
			}
			continue
		}
		fmt.Printf("topic: %q successfully created\n", res.Topic)
	}

	return errors.Join(errs...)
}

func printStart(cfg config.Config) {
	fmt.Printf("initializing topics...\n\t- %q\n\n", cfg.Broker.Topics.Purchases)
}

func printComplete(start time.Time) {
	fmt.Printf("\ncomplete in %s\n", time.Since(start))
}

func printFail(err error) {
	fmt.Printf("failed to create topics: \n%s\n", err)
}
