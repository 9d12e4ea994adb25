// Package approval posts Approve/Deny prompts to a Slack channel and
// polls for the operator's decision.
//
// This is deliberately a polling design: lab devices sit behind NAT
// with no inbound connectivity, so interactive webhooks are not an
// option. The poll loop reuses the same fixed-delay shape as the retry
// policy used elsewhere.
//
// The client is caller-owned with an explicit lifecycle; the package
// holds no global Slack client.
package approval

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

// Decision is the outcome of an approval request.
type Decision string

const (
	// DecisionApproved means the operator approved the request.
	DecisionApproved Decision = "approved"
	// DecisionDenied means the operator denied the request.
	DecisionDenied Decision = "denied"
	// DecisionTimeout means no decision arrived before the deadline.
	DecisionTimeout Decision = "timeout"
)

// ErrNoChannel indicates no channel was configured for the request.
var ErrNoChannel = errors.New("no slack channel configured")

// Default polling parameters, matching the historical behavior.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultTimeout      = 300 * time.Second
)

// approveReactions and denyReactions map operator emoji to decisions.
var (
	approveReactions = map[string]bool{"+1": true, "white_check_mark": true}
	denyReactions    = map[string]bool{"-1": true, "x": true}
)

// slackAPI is the subset of the Slack client the poller needs.
type slackAPI interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
	GetConversationHistory(params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
}

// Client posts approval prompts and awaits reactions.
type Client struct {
	api            slackAPI
	defaultChannel string
	pollInterval   time.Duration
	log            *logrus.Logger
}

// New builds a client from a bot token and a default channel.
func New(token, defaultChannel string, log *logrus.Logger) *Client {
	return &Client{
		api:            slack.New(token),
		defaultChannel: defaultChannel,
		pollInterval:   DefaultPollInterval,
		log:            log,
	}
}

// Ask posts a prompt with Approve and Deny buttons. It returns the
// message timestamp needed to await the response.
func (c *Client) Ask(prompt, channel string) (string, error) {
	if channel == "" {
		channel = c.defaultChannel
	}
	if channel == "" {
		return "", ErrNoChannel
	}

	section := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, prompt, false, false),
		nil, nil,
	)
	approve := slack.NewButtonBlockElement("approve", "approve",
		slack.NewTextBlockObject(slack.PlainTextType, "Approve", false, false))
	approve.Style = slack.StylePrimary
	deny := slack.NewButtonBlockElement("deny", "deny",
		slack.NewTextBlockObject(slack.PlainTextType, "Deny", false, false))
	deny.Style = slack.StyleDanger
	actions := slack.NewActionBlock("approval_actions", approve, deny)

	_, timestamp, err := c.api.PostMessage(channel, slack.MsgOptionBlocks(section, actions))
	if err != nil {
		return "", err
	}

	c.log.WithFields(logrus.Fields{
		"function":   "Ask",
		"channel":    channel,
		"message_ts": timestamp,
	}).Info("Posted approval request")

	return timestamp, nil
}

// Await polls the message for an operator reaction until a decision
// arrives, the timeout elapses, or ctx is cancelled. A thumbs-up or
// check-mark reaction approves; a thumbs-down or cross denies.
func (c *Client) Await(ctx context.Context, channel, messageTS string, timeout time.Duration) (Decision, error) {
	if channel == "" {
		channel = c.defaultChannel
	}
	if channel == "" {
		return DecisionTimeout, ErrNoChannel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if decision, ok := c.poll(channel, messageTS); ok {
			c.log.WithFields(logrus.Fields{
				"function":   "Await",
				"channel":    channel,
				"message_ts": messageTS,
				"decision":   decision,
			}).Info("Approval decision received")
			return decision, nil
		}

		select {
		case <-ctx.Done():
			return DecisionTimeout, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	c.log.WithFields(logrus.Fields{
		"function":   "Await",
		"channel":    channel,
		"message_ts": messageTS,
		"timeout":    timeout,
	}).Warn("Approval request timed out")

	return DecisionTimeout, nil
}

// poll fetches the prompt message and inspects its reactions.
func (c *Client) poll(channel, messageTS string) (Decision, bool) {
	resp, err := c.api.GetConversationHistory(&slack.GetConversationHistoryParameters{
		ChannelID: channel,
		Latest:    messageTS,
		Inclusive: true,
		Limit:     1,
	})
	if err != nil {
		// A transient API failure never aborts the wait; the next poll
		// may succeed.
		c.log.WithFields(logrus.Fields{
			"function": "poll",
			"channel":  channel,
			"error":    err.Error(),
		}).Debug("Approval poll failed")
		return DecisionTimeout, false
	}

	if len(resp.Messages) == 0 {
		return DecisionTimeout, false
	}

	for _, reaction := range resp.Messages[0].Reactions {
		if approveReactions[reaction.Name] {
			return DecisionApproved, true
		}
		if denyReactions[reaction.Name] {
			return DecisionDenied, true
		}
	}
	return DecisionTimeout, false
}
