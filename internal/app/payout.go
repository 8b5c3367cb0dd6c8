package app

import (
	"fmt"
	"time"

	"bookie/pkg/domain"
	"bookie/pkg/entitlement"
)

// PayoutPolicy decides what happens to the rest of the batch when a
// subscriber cannot afford the new chapter.
type PayoutPolicy int

const (
	// StopOnFirstInsufficientBalance ends the whole batch at the first
	// subscriber whose balance is below the chapter price. Subscribers after
	// that point are not charged and not entitled.
	StopOnFirstInsufficientBalance PayoutPolicy = iota
	// SkipInsufficientAndContinue leaves the broke subscriber unchanged and
	// keeps charging the rest of the list.
	SkipInsufficientAndContinue
)

// ParsePayoutPolicy maps the config strings to a policy.
func ParsePayoutPolicy(raw string) (PayoutPolicy, error) {
	switch raw {
	case "", "stop":
		return StopOnFirstInsufficientBalance, nil
	case "skip":
		return SkipInsufficientAndContinue, nil
	}
	return StopOnFirstInsufficientBalance, fmt.Errorf("unknown payout policy %q", raw)
}

// ChargeSubscribersForNewChapter debits every active subscriber of the book
// for the newly published chapter and credits the author the same amounts.
// Subscribers are visited in subscription creation order. Each subscriber's
// debit+credit pair commits on its own; a failure mid-batch leaves earlier
// charges in place and aborts the rest.
//
// Returns the number of subscribers charged.
func (a *App) ChargeSubscribersForNewChapter(bookID, chapterID int64) (int, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return 0, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return 0, ErrBookNotFound
	}
	author, ok, err := a.store.GetProfile(book.AuthorID)
	if err != nil {
		return 0, fmt.Errorf("load author: %w", err)
	}
	if !ok {
		return 0, ErrProfileNotFound
	}

	subscribers, err := a.store.ListActiveSubscribers(bookID)
	if err != nil {
		return 0, fmt.Errorf("list subscribers: %w", err)
	}

	var allIDs []int64
	now := time.Now().UTC()
	charged := 0
	for _, reader := range subscribers {
		if reader.Points < book.ChapterPrice {
			if a.payoutPolicy == SkipInsufficientAndContinue {
				continue
			}
			break
		}
		sub, ok, err := a.store.GetSubscription(bookID, reader.ID)
		if err != nil {
			return charged, fmt.Errorf("load subscription: %w", err)
		}
		if !ok {
			continue
		}

		var cost float64
		if sub.State == domain.SubscriptionLapsed {
			// Lapsed rows are filtered out of the subscriber list; if one
			// slips through, back-charge everything missed instead of just
			// the new chapter.
			if allIDs == nil {
				chapters, err := a.store.ListChapters(bookID)
				if err != nil {
					return charged, fmt.Errorf("list chapters: %w", err)
				}
				allIDs = make([]int64, 0, len(chapters))
				for _, ch := range chapters {
					allIDs = append(allIDs, ch.ID)
				}
			}
			newlyOwed := entitlement.NewlyOwed(allIDs, sub.OwnedChapters)
			cost = book.ChapterPrice * float64(len(newlyOwed))
			if reader.Points < cost {
				if a.payoutPolicy == SkipInsufficientAndContinue {
					continue
				}
				break
			}
			sub.OwnedChapters = entitlement.Merge(sub.OwnedChapters, newlyOwed)
			sub.State = domain.SubscriptionActive
		} else {
			if sub.Owns(chapterID) {
				continue
			}
			cost = book.ChapterPrice
			sub.OwnedChapters = entitlement.Merge(sub.OwnedChapters, []int64{chapterID})
		}

		reader.Points -= cost
		reader.UpdatedAt = now
		author.Points += cost
		author.UpdatedAt = now
		if err := a.store.ApplyCharge(reader, author, sub); err != nil {
			return charged, fmt.Errorf("apply charge: %w", err)
		}
		charged++
	}
	return charged, nil
}
