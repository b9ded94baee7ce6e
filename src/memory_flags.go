package main

import (
	"context"
	"fmt"

	"github.com/ryansname/drivectl/src/params"
)

// retainedFlags is the ephemeral store as seen by the cycle and its jobs.
// Flags arrive as retained drivectl/memory/<key> messages, so removing a key
// also clears the retained message. Otherwise a reconnect or restart would
// deliver a handled request again.
//
// The telemetry worker writes the underlying store directly; clears echoed
// back by the broker must not publish again.
type retainedFlags struct {
	params.Store
	sender *MQTTSender
}

func newRetainedFlags(store params.Store, sender *MQTTSender) *retainedFlags {
	return &retainedFlags{Store: store, sender: sender}
}

func (f *retainedFlags) Remove(ctx context.Context, key string) error {
	if err := f.Store.Remove(ctx, key); err != nil {
		return err
	}
	if err := f.sender.ClearFlag(key); err != nil {
		return fmt.Errorf("clear retained %s: %w", key, err)
	}
	return nil
}
