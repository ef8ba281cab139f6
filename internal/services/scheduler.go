package services

import (
	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// errStillOpen aborts an expiry whose listing changed after the scan.
var errStillOpen = errors.New("listing no longer expirable")

// ExpirySweeper moves ACTIVE listings past their deadline to EXPIRED. Only
// the instance holding leadership sweeps on the cron schedule.
type ExpirySweeper struct {
	cron           *cron.Cron
	store          domain.Store
	locker         domain.ListingLocker
	leaderElection domain.LeaderElection
	clock          domain.Clock
	events         eventEmitter
	instanceID     string
	interval       time.Duration
	log            logger.Logger
}

func NewExpirySweeper(
	store domain.Store,
	locker domain.ListingLocker,
	eventPub domain.EventPublisher,
	leaderElection domain.LeaderElection,
	clock domain.Clock,
	instanceID string,
	interval time.Duration,
	log logger.Logger,
) *ExpirySweeper {
	return &ExpirySweeper{
		cron:           cron.New(cron.WithSeconds()),
		store:          store,
		locker:         locker,
		leaderElection: leaderElection,
		clock:          clock,
		events:         eventEmitter{publisher: eventPub, log: log},
		instanceID:     instanceID,
		interval:       interval,
		log:            log,
	}
}

func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.log.Info("Starting expiry sweeper", "interval", s.interval.String())

	_, err := s.cron.AddFunc("@every "+s.interval.String(), func() {
		s.tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("service: schedule sweeper: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop waits for a running sweep to finish.
func (s *ExpirySweeper) Stop() error {
	s.log.Info("Stopping expiry sweeper")
	<-s.cron.Stop().Done()
	return nil
}

// SweepExpired expires every listing whose deadline is at or before now and
// returns how many it transitioned. Listings that were accepted or withdrawn
// after the scan are skipped silently.
func (s *ExpirySweeper) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.store.Listings().ListExpirable(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("service: scan expirable listings: %w", err)
	}

	var (
		expired int
		errs    []error
	)
	for _, candidate := range candidates {
		listingID := candidate.ID
		err := mutateListing(ctx, s.locker, s.store, listingID, func(tx domain.Repositories) error {
			listing, err := tx.Listings().GetListing(ctx, listingID)
			if err != nil {
				return err
			}
			if listing.Status != domain.ListingActive || listing.AuctionEndAt.After(now) {
				return errStillOpen
			}
			return tx.Listings().UpdateListingStatus(ctx, listingID, domain.ListingExpired, now)
		})
		switch {
		case err == nil:
		case errors.Is(err, errStillOpen), errors.Is(err, domain.ErrListingNotActive):
			s.log.Debug("Expiry lost race", "listing_id", listingID)
			continue
		default:
			s.log.Error("Failed to expire listing", "listing_id", listingID, "error", err)
			errs = append(errs, err)
			continue
		}

		expired++
		s.events.emit(ctx, &domain.MarketEvent{
			Type:      domain.EventListingExpired,
			ListingID: listingID,
			UserID:    candidate.SellerID,
			Timestamp: now,
		})
	}

	return expired, errors.Join(errs...)
}

func (s *ExpirySweeper) tick(ctx context.Context) {
	isLeader, err := s.leaderElection.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Failed to check leadership", "error", err)
		return
	}
	if !isLeader {
		return
	}

	expired, err := s.SweepExpired(ctx, s.clock.Now())
	if err != nil {
		s.log.Error("Expiry sweep incomplete", "expired", expired, "error", err)
		return
	}
	if expired > 0 {
		s.log.Info("Expiry sweep finished", "expired", expired)
	}
}

var _ domain.ExpiryScheduler = (*ExpirySweeper)(nil)
