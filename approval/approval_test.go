package approval

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSlack struct {
	postErr   error
	postTS    string
	postCalls int

	reactions [][]slack.ItemReaction // one entry per poll
	histErr   error
	polls     int
}

func (f *fakeSlack) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	f.postCalls++
	if f.postErr != nil {
		return "", "", f.postErr
	}
	return channelID, f.postTS, nil
}

func (f *fakeSlack) GetConversationHistory(params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	if f.histErr != nil {
		return nil, f.histErr
	}

	var reactions []slack.ItemReaction
	if f.polls < len(f.reactions) {
		reactions = f.reactions[f.polls]
	} else if len(f.reactions) > 0 {
		reactions = f.reactions[len(f.reactions)-1]
	}
	f.polls++

	msg := slack.Message{}
	msg.Reactions = reactions
	return &slack.GetConversationHistoryResponse{
		Messages: []slack.Message{msg},
	}, nil
}

func testClient(fake *fakeSlack) *Client {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Client{
		api:            fake,
		defaultChannel: "#lab-approvals",
		pollInterval:   time.Millisecond,
		log:            log,
	}
}

func TestAskPostsAndReturnsTimestamp(t *testing.T) {
	fake := &fakeSlack{postTS: "1714.002"}
	c := testClient(fake)

	ts, err := c.Ask("Run calibration?", "")
	require.NoError(t, err)
	assert.Equal(t, "1714.002", ts)
	assert.Equal(t, 1, fake.postCalls)
}

func TestAskRequiresChannel(t *testing.T) {
	c := testClient(&fakeSlack{})
	c.defaultChannel = ""

	_, err := c.Ask("Run calibration?", "")
	require.ErrorIs(t, err, ErrNoChannel)
}

func TestAskPropagatesPostError(t *testing.T) {
	fake := &fakeSlack{postErr: errors.New("channel_not_found")}
	c := testClient(fake)

	_, err := c.Ask("Run calibration?", "#ops")
	require.Error(t, err)
}

func TestAwaitDecisions(t *testing.T) {
	tests := []struct {
		name      string
		reactions [][]slack.ItemReaction
		want      Decision
	}{
		{
			name:      "thumbs_up_approves",
			reactions: [][]slack.ItemReaction{{{Name: "+1"}}},
			want:      DecisionApproved,
		},
		{
			name:      "check_mark_approves",
			reactions: [][]slack.ItemReaction{{{Name: "white_check_mark"}}},
			want:      DecisionApproved,
		},
		{
			name:      "thumbs_down_denies",
			reactions: [][]slack.ItemReaction{{{Name: "-1"}}},
			want:      DecisionDenied,
		},
		{
			name: "decision_on_later_poll",
			reactions: [][]slack.ItemReaction{
				nil,
				nil,
				{{Name: "x"}},
			},
			want: DecisionDenied,
		},
		{
			name:      "unrelated_reactions_ignored",
			reactions: [][]slack.ItemReaction{{{Name: "eyes"}}},
			want:      DecisionTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(&fakeSlack{reactions: tt.reactions})

			decision, err := c.Await(context.Background(), "", "1714.002", 50*time.Millisecond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, decision)
		})
	}
}

func TestAwaitSurvivesTransientAPIFailures(t *testing.T) {
	fake := &fakeSlack{histErr: errors.New("rate_limited")}
	c := testClient(fake)

	decision, err := c.Await(context.Background(), "", "1714.002", 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, DecisionTimeout, decision)
}

func TestAwaitContextCancellation(t *testing.T) {
	c := testClient(&fakeSlack{})
	c.pollInterval = 10 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	decision, err := c.Await(ctx, "", "1714.002", time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, DecisionTimeout, decision)
}
