package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/quotedesk-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "qd-prod"}
	cases := map[string]string{
		"qd-domain-events":                     "projects/qd-prod/topics/qd-domain-events",
		"  qd-domain-events ":                  "projects/qd-prod/topics/qd-domain-events",
		"projects/other/topics/qd-domain-evts": "projects/other/topics/qd-domain-evts",
		"":                                     "",
	}
	for in, want := range cases {
		if got := c.topicResourceName(in); got != want {
			t.Errorf("topicResourceName(%q) = %q, want %q", in, got, want)
		}
	}

	noProject := &Client{}
	if got := noProject.topicResourceName("topic"); got != "" {
		t.Errorf("expected empty name without project, got %q", got)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{DomainTopic: "t"}, nil)
	if err != errProjectIDRequired {
		t.Fatalf("expected errProjectIDRequired, got %v", err)
	}
}

func TestNilClientHelpers(t *testing.T) {
	var c *Client
	if c.Publisher("t") != nil {
		t.Fatalf("nil client should return nil publisher")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("expected error pinging nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}

func TestCloseWithoutPublishers(t *testing.T) {
	c := &Client{projectID: "qd-dev"}
	if err := c.Close(); err != nil {
		t.Fatalf("close unconnected client: %v", err)
	}
	if c.Publisher("qd-domain-events") != nil {
		t.Fatalf("unconnected client should not hand out publishers")
	}
}
