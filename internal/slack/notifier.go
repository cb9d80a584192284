/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package slack

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/slack-go/slack"

	"github.com/panteparak/vault-config/shared/events"
)

var (
	// ErrInvalidToken is returned when a callback fails verification.
	ErrInvalidToken = errors.New("invalid verification token")

	// ErrInvalidAction is returned for callbacks that are not share claims.
	ErrInvalidAction = errors.New("callback is not an unseal share claim")

	// ErrNoMessage is returned when a claim arrives before shares were posted.
	ErrNoMessage = errors.New("no unseal shares have been posted")
)

// Poster is the Slack API surface the notifier needs. *slack.Client
// implements it.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
}

var _ Poster = (*slack.Client)(nil)

// Notifier posts generated shares to a channel and serves claims.
type Notifier struct {
	api               Poster
	channelID         string
	verificationToken string
	log               logr.Logger

	mu      sync.Mutex
	message *KeyMessage
}

// NewNotifier creates a notifier posting to channelID.
func NewNotifier(api Poster, channelID, verificationToken string, log logr.Logger) *Notifier {
	return &Notifier{
		api:               api,
		channelID:         channelID,
		verificationToken: verificationToken,
		log:               log.WithName("slack"),
	}
}

// NewClient creates a Slack API client for token.
func NewClient(token string, options ...slack.Option) *slack.Client {
	return slack.New(token, options...)
}

// Destination describes where shares are delivered, for the key banner.
func (n *Notifier) Destination() string {
	return "slack channel " + n.channelID
}

// Subscribe posts shares whenever KeysGenerated is published on bus.
func (n *Notifier) Subscribe(bus *events.EventBus) (unsubscribe func()) {
	return events.Subscribe(bus, func(ctx context.Context, e events.KeysGenerated) error {
		return n.PostKeys(ctx, e.Keys)
	})
}

// PostKeys offers shares in the channel. It replaces any earlier offer.
func (n *Notifier) PostKeys(ctx context.Context, shares []string) error {
	message, err := NewKeyMessage(shares)
	if err != nil {
		return err
	}
	_, ts, err := n.api.PostMessageContext(ctx, n.channelID,
		slack.MsgOptionText("Vault was initialized", false),
		slack.MsgOptionBlocks(message.Blocks()...),
	)
	if err != nil {
		return fmt.Errorf("failed to post unseal shares: %w", err)
	}

	n.mu.Lock()
	n.message = message
	n.mu.Unlock()

	n.log.Info("posted unseal shares", "channel", n.channelID, "ts", ts, "shares", len(shares))
	return nil
}

// Verify checks the callback verification token.
func (n *Notifier) Verify(token string) error {
	if n.verificationToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(n.verificationToken)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// IsClaim reports whether cb is a share claim.
func IsClaim(cb *slack.InteractionCallback) bool {
	if cb == nil || cb.Type != slack.InteractionTypeBlockActions {
		return false
	}
	actions := cb.ActionCallback.BlockActions
	return len(actions) > 0 && actions[0].ActionID == ClaimActionID
}

// HandleClaim sends the claimed share privately to the claiming user and
// marks it claimed in the channel message. A share whose private message
// could not be sent stays claimable.
func (n *Notifier) HandleClaim(ctx context.Context, cb *slack.InteractionCallback) error {
	if err := n.Verify(cb.Token); err != nil {
		return err
	}
	if !IsClaim(cb) {
		return ErrInvalidAction
	}

	n.mu.Lock()
	message := n.message
	n.mu.Unlock()
	if message == nil {
		return ErrNoMessage
	}

	name := cb.ActionCallback.BlockActions[0].Value
	user := cb.User.ID
	share, err := message.Claim(name, user)
	if err != nil {
		return err
	}

	if _, _, err := n.api.PostMessageContext(ctx, user,
		slack.MsgOptionText("Notification from Vault", false),
		slack.MsgOptionBlocks(PrivateBlocks(name, share)...),
	); err != nil {
		message.Release(name, user)
		return fmt.Errorf("failed to send share %s to %s: %w", name, user, err)
	}
	if _, _, _, err := n.api.UpdateMessageContext(ctx, cb.Channel.ID, cb.Message.Timestamp,
		slack.MsgOptionBlocks(message.Blocks()...),
	); err != nil {
		return fmt.Errorf("failed to mark share %s claimed: %w", name, err)
	}

	n.log.Info("unseal share claimed", "share", name, "user", user, "remaining", len(message.Unclaimed()))
	return nil
}
