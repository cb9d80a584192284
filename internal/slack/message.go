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

// Package slack delivers newly generated unseal shares through Slack. Each
// share is offered behind a Claim button and sent privately to the first
// user who claims it.
package slack

import (
	"errors"
	"fmt"
	"sync"

	"github.com/slack-go/slack"
)

// ClaimActionID is the action id of the Claim buttons.
const ClaimActionID = "unseal_claim"

// ShareNames are the public names the shares are offered under, in order.
var ShareNames = []string{
	"Alpha", "Beta", "Gamma", "Delta", "Epsilon", "Zeta", "Eta",
	"Theta", "Iota", "Kappa", "Phi", "Chi", "Psi",
}

var (
	// ErrUnknownShare is returned when a claim names no offered share.
	ErrUnknownShare = errors.New("unknown unseal share")

	// ErrAlreadyClaimed is returned when the share was claimed before.
	ErrAlreadyClaimed = errors.New("unseal share already claimed")
)

// KeyMessage is the channel message offering the shares.
type KeyMessage struct {
	mu        sync.Mutex
	names     []string
	shares    map[string]string
	claimedBy map[string]string
}

// NewKeyMessage names the shares and builds the message model.
func NewKeyMessage(shares []string) (*KeyMessage, error) {
	if len(shares) == 0 {
		return nil, errors.New("no unseal shares to offer")
	}
	if len(shares) > len(ShareNames) {
		return nil, fmt.Errorf("cannot offer %d shares, at most %d are supported", len(shares), len(ShareNames))
	}
	m := &KeyMessage{
		names:     ShareNames[:len(shares)],
		shares:    make(map[string]string, len(shares)),
		claimedBy: make(map[string]string),
	}
	for i, share := range shares {
		m.shares[ShareNames[i]] = share
	}
	return m, nil
}

// Claim hands the named share to user and marks it claimed.
func (m *KeyMessage) Claim(name, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	share, ok := m.shares[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownShare, name)
	}
	if by, claimed := m.claimedBy[name]; claimed {
		return "", fmt.Errorf("%w: %s by %s", ErrAlreadyClaimed, name, by)
	}
	m.claimedBy[name] = user
	return share, nil
}

// Release undoes a claim by user so the share is offered again. Claims
// held by other users are left alone.
func (m *KeyMessage) Release(name, user string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.claimedBy[name] == user {
		delete(m.claimedBy, name)
	}
}

// Unclaimed returns the names still offered.
func (m *KeyMessage) Unclaimed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, name := range m.names {
		if _, claimed := m.claimedBy[name]; !claimed {
			out = append(out, name)
		}
	}
	return out
}

// Blocks renders the message. Claimed shares lose their button and name
// the claiming user.
func (m *KeyMessage) Blocks() []slack.Block {
	m.mu.Lock()
	defer m.mu.Unlock()

	blocks := []slack.Block{
		slack.NewSectionBlock(markdown("*Vault was initialized! Before using it, distribute and claim the following unseal keys:*"), nil, nil),
		slack.NewDividerBlock(),
	}
	for _, name := range m.names {
		text := fmt.Sprintf(":key: *%s*", name)
		if by, claimed := m.claimedBy[name]; claimed {
			blocks = append(blocks, slack.NewSectionBlock(markdown(text+fmt.Sprintf(" - Claimed by <@%s>", by)), nil, nil))
			continue
		}
		button := slack.NewButtonBlockElement(ClaimActionID, name, slack.NewTextBlockObject(slack.PlainTextType, "Claim", false, false))
		section := slack.NewSectionBlock(markdown(text), nil, slack.NewAccessory(button))
		section.BlockID = "share-" + name
		blocks = append(blocks, section)
	}
	return append(blocks, slack.NewDividerBlock())
}

// PrivateBlocks renders the direct message carrying one share.
func PrivateBlocks(name, share string) []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(markdown("Hey, this is your requested Vault key! Note it down and store it in a secret place:"), nil, nil),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(markdown(fmt.Sprintf(":key: *%s*: ```%s```", name, share)), nil, nil),
	}
}

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}
