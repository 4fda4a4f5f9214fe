package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/quotedesk-backend/pkg/config"
	"github.com/angelmondragon/quotedesk-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub domain topic is required")
	errClosed            = errors.New("pubsub client not initialized")
)

// Domain events are small; flush quickly so subscribers see saves promptly.
const (
	publishDelay     = 50 * time.Millisecond
	publishCountMax  = 100
	publishTimeout   = 30 * time.Second
	topicCheckBudget = 10 * time.Second
)

// Client owns the Pub/Sub connection and one publisher per topic. Close
// flushes every publisher before the connection goes away.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects to Pub/Sub (or PUBSUB_EMULATOR_HOST when set) and fails
// if the domain topic does not exist.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	raw, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: raw, projectID: project, cfg: cfg}
	if err := c.checkTopic(ctx, cfg.DomainTopic); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project": project,
			"topic":   cfg.DomainTopic,
		}), "pubsub client ready")
	}
	return c, nil
}

func (c *Client) checkTopic(ctx context.Context, name string) error {
	full := c.topicResourceName(name)
	if full == "" {
		return errNoTopic
	}
	ctx, cancel := context.WithTimeout(ctx, topicCheckBudget)
	defer cancel()
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	switch status.Code(err) {
	case codes.OK:
		return nil
	case codes.NotFound:
		return fmt.Errorf("pubsub topic %s does not exist", full)
	case codes.PermissionDenied:
		return fmt.Errorf("no permission to read pubsub topic %s: %w", full, err)
	}
	return fmt.Errorf("checking pubsub topic %s: %w", full, err)
}

// Publisher returns the cached publisher for a topic id or full resource
// name, or nil when the client is closed or the name is blank.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.topicResourceName(name)
	if full == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[full]; ok {
		return p
	}
	p := c.client.Publisher(full)
	p.PublishSettings.DelayThreshold = publishDelay
	p.PublishSettings.CountThreshold = publishCountMax
	p.PublishSettings.Timeout = publishTimeout
	if c.publishers == nil {
		c.publishers = make(map[string]*pubsub.Publisher)
	}
	c.publishers[full] = p
	return p
}

// Ping re-checks the domain topic.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errClosed
	}
	return c.checkTopic(ctx, c.cfg.DomainTopic)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, p := range c.publishers {
		p.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}

// topicResourceName expands a bare topic id to projects/<p>/topics/<id>.
func (c *Client) topicResourceName(name string) string {
	name = strings.TrimSpace(name)
	switch {
	case c == nil || name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/"):
		return name
	case c.projectID == "":
		return ""
	}
	return "projects/" + c.projectID + "/topics/" + name
}
