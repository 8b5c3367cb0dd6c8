package events

import (
	"context"
	"testing"
)

func TestNilPublisherIsNoop(t *testing.T) {
	var p *AMQPPublisher

	ctx := context.Background()
	if err := p.PublishChapterPublished(ctx, ChapterPublished{BookID: 1, ChapterID: 2, ChargedCount: 3}); err != nil {
		t.Fatalf("nil publisher chapter event: %v", err)
	}
	if err := p.PublishSubscriptionCreated(ctx, SubscriptionChanged{BookID: 1, ProfileID: 9}); err != nil {
		t.Fatalf("nil publisher subscribe event: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("nil publisher close: %v", err)
	}
}

func TestNewAMQPPublisherRequiresURL(t *testing.T) {
	if _, err := NewAMQPPublisher("   ", ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
