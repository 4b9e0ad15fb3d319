package publishers

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistryEnabledFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "publishers.yaml")
	raw := `
publishers:
  - id: http1
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: queue
    type: SQS
    sqs:
      uri: https://sqs.eu-west-1.amazonaws.com/123/issued
      region: eu-west-1
      endpoint: http://localhost:4566
  - id: gcp
    type: pubsub
    pubsub:
      project_id: atlas
      topic: issued
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 2 || enabled[0].ID != "queue" || enabled[1].ID != "gcp" {
		t.Fatalf("unexpected enabled publishers %#v", enabled)
	}
	queue, ok := reg.ByID("queue")
	if !ok || queue.Type != TypeSQS {
		t.Fatalf("type should be normalized, got %#v", queue)
	}
	if queue.SQS.Endpoint != "http://localhost:4566" {
		t.Fatalf("inline aws settings not decoded: %#v", queue.SQS)
	}
}

func TestValidatePublisherConfig(t *testing.T) {
	cases := map[string]PublisherConfig{
		"missing http":   {ID: "h1", Type: TypeHTTP},
		"missing sns":    {ID: "s1", Type: TypeSNS, SNS: &SNSPublisherConfig{Region: "eu-west-1"}},
		"half aws creds": {ID: "q1", Type: TypeSQS, SQS: &SQSPublisherConfig{QueueURL: "u", Region: "r", AWSAuth: AWSAuth{AccessKeyID: "x"}}},
		"missing topic":  {ID: "g1", Type: TypePubSub, PubSub: &PubSubPublisherConfig{ProjectID: "p"}},
	}
	for name, cfg := range cases {
		if err := validatePublisherConfig(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
