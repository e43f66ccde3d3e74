package main

import (
	"context"
	"time"

	"github.com/codegraphhq/codegraph/internal/api"
	"github.com/codegraphhq/codegraph/internal/broker"
	"github.com/codegraphhq/codegraph/internal/eventbus"
	"github.com/codegraphhq/codegraph/internal/snapshot"
	"github.com/codegraphhq/codegraph/internal/storage/sqlite"
)

// app bundles the opened core components for one command invocation.
type app struct {
	store  *sqlite.Store
	bus    *eventbus.Bus
	broker *broker.Broker
	api    *api.API
}

// openApp opens the store at the resolved database path and wires the bus,
// broker, snapshot engine, and facade around it.
func openApp(ctx context.Context) (*app, error) {
	bus := eventbus.New(cfg.MailboxSize)
	store, err := sqlite.New(ctx, dbPath, sqlite.WithBus(bus))
	if err != nil {
		bus.Close()
		return nil, err
	}

	br := broker.New(
		broker.WithBus(bus),
		broker.WithHistoryCap(cfg.HistoryCapacity),
	)
	engine := snapshot.NewEngine(store)
	return &app{
		store:  store,
		bus:    bus,
		broker: br,
		api:    api.New(store, engine, br),
	}, nil
}

func (a *app) close() {
	_ = a.store.Close()
	a.bus.Close()
}

// waitTimeout returns the configured broker default as a duration.
func (a *app) waitTimeout() time.Duration {
	return time.Duration(cfg.WaitTimeoutMs) * time.Millisecond
}
