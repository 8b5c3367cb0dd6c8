package app

import (
	"context"
	"fmt"
	"time"

	"bookie/pkg/domain"
	"bookie/pkg/entitlement"
	"bookie/pkg/events"
)

// Subscribe entitles a reader to every chapter of a book, now and as new ones
// are published. A fresh subscription pays for all currently published
// chapters; resuming a lapsed one pays only for the chapters missed in
// between. Nothing is persisted until the cost is known to be affordable.
func (a *App) Subscribe(ctx context.Context, bookID, profileID int64) error {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return ErrBookNotFound
	}
	switch book.Status {
	case domain.StatusApproved:
	case domain.StatusRejected:
		return &BookRejectedError{Comment: book.StatusComment}
	default:
		return ErrBookNotApproved
	}
	if book.AuthorID == profileID {
		return ErrSelfSubscription
	}

	sub, hasSub, err := a.store.GetSubscription(bookID, profileID)
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}
	if hasSub && sub.State == domain.SubscriptionActive {
		return ErrAlreadySubscribed
	}

	chapters, err := a.store.ListChapters(bookID)
	if err != nil {
		return fmt.Errorf("list chapters: %w", err)
	}
	allIDs := make([]int64, 0, len(chapters))
	for _, ch := range chapters {
		allIDs = append(allIDs, ch.ID)
	}

	var owned []int64
	if hasSub {
		owned = sub.OwnedChapters
	}
	newlyOwed := entitlement.NewlyOwed(allIDs, owned)
	cost := book.ChapterPrice * float64(len(newlyOwed))

	reader, ok, err := a.store.GetProfile(profileID)
	if err != nil {
		return fmt.Errorf("load reader: %w", err)
	}
	if !ok {
		return ErrProfileNotFound
	}
	if reader.Points < cost {
		return ErrInsufficientPoints
	}

	now := time.Now().UTC()
	next := domain.Subscription{
		BookID:        bookID,
		ProfileID:     profileID,
		State:         domain.SubscriptionActive,
		OwnedChapters: entitlement.Merge(owned, newlyOwed),
		BoughtAt:      now,
	}
	if hasSub {
		next.BoughtAt = sub.BoughtAt
	}

	if cost == 0 {
		// Resubscribing with nothing new published, or subscribing to a
		// book with no chapters yet. No point transfer happens.
		if err := a.store.SaveSubscription(next); err != nil {
			return fmt.Errorf("save subscription: %w", err)
		}
	} else {
		author, ok, err := a.store.GetProfile(book.AuthorID)
		if err != nil {
			return fmt.Errorf("load author: %w", err)
		}
		if !ok {
			return ErrProfileNotFound
		}
		reader.Points -= cost
		reader.UpdatedAt = now
		author.Points += cost
		author.UpdatedAt = now
		if err := a.store.ApplyCharge(reader, author, next); err != nil {
			return fmt.Errorf("apply charge: %w", err)
		}
	}

	if err := a.events.PublishSubscriptionCreated(ctx, events.SubscriptionChanged{
		BookID: bookID, ProfileID: profileID,
	}); err != nil {
		logEventError(ctx, "subscription.created", err)
	}
	return nil
}

// Unsubscribe lapses an active subscription. The owned-chapter set is kept so
// a later resubscription can compute the catch-up charge.
func (a *App) Unsubscribe(ctx context.Context, bookID, profileID int64) error {
	sub, ok, err := a.store.GetSubscription(bookID, profileID)
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}
	if !ok || sub.State != domain.SubscriptionActive {
		return ErrNotSubscribed
	}
	sub.State = domain.SubscriptionLapsed
	if err := a.store.SaveSubscription(sub); err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	if err := a.events.PublishSubscriptionCanceled(ctx, events.SubscriptionChanged{
		BookID: bookID, ProfileID: profileID,
	}); err != nil {
		logEventError(ctx, "subscription.canceled", err)
	}
	return nil
}

// ListSubscriptions returns every subscription row of a profile, active and
// lapsed.
func (a *App) ListSubscriptions(profileID int64) ([]domain.Subscription, error) {
	return a.store.ListSubscriptionsByProfile(profileID)
}
