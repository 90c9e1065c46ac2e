// Package gocommand mounts the approval command and query handlers on the
// go-command registry and in-process dispatcher, so embedding applications
// can drive decisions through the same message bus as the rest of their
// handlers.
package gocommand

import (
	"context"
	"fmt"
	"strings"

	approvals "github.com/goliatone/go-approvals"
	approvalscommand "github.com/goliatone/go-approvals/command"
	"github.com/goliatone/go-approvals/core"
	approvalsquery "github.com/goliatone/go-approvals/query"
	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

// Bus couples one command registry with the dispatcher subscriptions made
// through it, so everything attached in one place can be detached in one
// place.
type Bus struct {
	registry      *command.Registry
	subscriptions []commanddispatcher.Subscription
}

func NewBus(registry *command.Registry) *Bus {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &Bus{registry: registry}
}

func (b *Bus) Registry() *command.Registry {
	if b == nil {
		return nil
	}
	return b.registry
}

func (b *Bus) RegisterCommand(cmd any) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return b.registry.RegisterCommand(cmd)
}

func (b *Bus) RegisterQuery(qry any) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return b.registry.RegisterCommand(qry)
}

func (b *Bus) AddResolver(key string, resolver command.Resolver) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return b.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (b *Bus) HasResolver(key string) bool {
	if b == nil || b.registry == nil {
		return false
	}
	return b.registry.HasResolver(strings.TrimSpace(key))
}

func (b *Bus) Initialize() error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return b.registry.Initialize()
}

// Attach registers every decision command and read query the facade carries,
// on the registry and the dispatcher both. A partial failure unwinds the
// subscriptions already made.
func (b *Bus) Attach(facade *approvals.Facade, runnerOpts ...runner.Option) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if facade == nil {
		return fmt.Errorf("gocommand: facade is required")
	}

	commands := facade.Commands()
	queries := facade.Queries()

	if err := b.track(RegisterAndSubscribe[approvalscommand.ApproveMessage](b, commands.Approve, runnerOpts...)); err != nil {
		return err
	}
	if err := b.track(RegisterAndSubscribe[approvalscommand.RejectMessage](b, commands.Reject, runnerOpts...)); err != nil {
		return err
	}
	if err := b.track(RegisterAndSubscribeQuery[approvalsquery.GetObjectMessage, core.ApprovableObject](b, queries.GetObject, runnerOpts...)); err != nil {
		return err
	}
	if err := b.track(RegisterAndSubscribeQuery[approvalsquery.ListPendingMessage, []core.ApprovableObject](b, queries.ListPending, runnerOpts...)); err != nil {
		return err
	}
	if err := b.track(RegisterAndSubscribeQuery[approvalsquery.ListAuditMessage, core.AuditPage](b, queries.ListAudit, runnerOpts...)); err != nil {
		return err
	}
	if err := b.track(RegisterAndSubscribeQuery[approvalsquery.GetAuditEntryMessage, core.AuditLogEntry](b, queries.GetAuditEntry, runnerOpts...)); err != nil {
		return err
	}
	return nil
}

func (b *Bus) track(subscription commanddispatcher.Subscription, err error) error {
	if err != nil {
		b.Close()
		return err
	}
	b.subscriptions = append(b.subscriptions, subscription)
	return nil
}

// Close drops every subscription made through this bus. The registry keeps
// its registrations; only dispatcher routing stops.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	for _, subscription := range b.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	b.subscriptions = nil
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeCommandFunc[T any](handler command.CommandFunc[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(handler, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func SubscribeQueryFunc[T any, R any](qry command.QueryFunc[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	bus *Bus,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if bus == nil || bus.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := bus.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	bus *Bus,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if bus == nil || bus.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := bus.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}
