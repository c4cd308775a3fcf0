package services

import (
	"errors"
	"log"
	"sort"
	"time"

	"gamification-engine/models"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// MarketService manages offers and bids. It guarantees coin conservation
// across creation, bidding, completion and cancellation: while an offer is
// open the escrowed total equals its prize, and at a terminal state the sum
// of payout or refunds equals the initial prize plus all bids.
type MarketService struct {
	DB    *gorm.DB
	locks *KeyedLocks
	goals *GoalService

	// RetriggerOnPayout controls whether the prize payout of a completed
	// offer (coins only) re-triggers points-rule goal evaluation for the
	// completer. The classic behavior is off.
	RetriggerOnPayout bool
}

func NewMarketService(db *gorm.DB, locks *KeyedLocks, goals *GoalService) *MarketService {
	return &MarketService{DB: db, locks: locks, goals: goals}
}

// EnsureMarketPlace returns the organisation's marketplace, creating it on
// first use (one per organisation).
func (s *MarketService) EnsureMarketPlace(org *models.Organisation) (*models.MarketPlace, error) {
	var market models.MarketPlace
	err := s.DB.Where("organisation_id = ?", org.ID).First(&market).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		market = models.MarketPlace{OrganisationID: org.ID}
		if err := s.DB.Create(&market).Error; err != nil {
			return nil, err
		}
		return &market, nil
	}
	if err != nil {
		return nil, err
	}
	return &market, nil
}

type CreateOfferInput struct {
	TaskID    string
	CreatorID string
	Name      string
	Prize     int64
	EndDate   *time.Time
	Deadline  *time.Time
}

// CreateOffer lists a tradeable task against an initial prize. The prize is
// debited from the creator and held in escrow. All validation happens before
// any balance mutation; on failure nothing is applied.
func (s *MarketService) CreateOffer(org *models.Organisation, in CreateOfferInput) (*models.Offer, error) {
	if in.Prize <= 0 {
		return nil, errInvalidAmount("offer prize must be positive, got %d", in.Prize)
	}

	var task models.Task
	if err := s.DB.Where("id = ? AND organisation_id = ?", in.TaskID, org.ID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("no such task in organisation: %s", in.TaskID)
		}
		return nil, err
	}
	if !task.Tradeable {
		return nil, errInvalidState("task %s is not tradeable", task.ID)
	}

	market, err := s.EnsureMarketPlace(org)
	if err != nil {
		return nil, err
	}

	release := s.locks.Acquire(playerLockKey(in.CreatorID))
	defer release()

	var offer *models.Offer
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var creator models.Player
		if err := tx.Where("id = ? AND organisation_id = ?", in.CreatorID, org.ID).First(&creator).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errNotFound("no such player in organisation: %s", in.CreatorID)
			}
			return err
		}
		if !creator.EnoughCoins(in.Prize) {
			return errInsufficientFunds("player %s has %d coins, offer needs %d", creator.ID, creator.Coins, in.Prize)
		}

		creator.Coins -= in.Prize
		if err := tx.Save(&creator).Error; err != nil {
			return err
		}

		offer = &models.Offer{
			OrganisationID: org.ID,
			MarketPlaceID:  market.ID,
			TaskID:         task.ID,
			CreatorID:      creator.ID,
			Name:           in.Name,
			Slug:           slug.Make(in.Name),
			InitialPrize:   in.Prize,
			Prize:          in.Prize,
			Status:         models.OfferStatusOpen,
			EndDate:        in.EndDate,
			Deadline:       in.Deadline,
		}
		return tx.Create(offer).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("🏷️ Offer created: %s (prize %d) by player %s", offer.Name, offer.Prize, offer.CreatorID)
	return offer, nil
}

// PlaceBid escrows an additional pledge that raises the offer's prize. The
// amount is tied back to the bidder for refund bookkeeping on cancellation.
func (s *MarketService) PlaceBid(org *models.Organisation, offerID, bidderID string, amount int64) (*models.Bid, error) {
	if amount <= 0 {
		return nil, errInvalidAmount("bid amount must be positive, got %d", amount)
	}

	release := s.locks.Acquire(offerLockKey(offerID), playerLockKey(bidderID))
	defer release()

	var bid *models.Bid
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var offer models.Offer
		if err := tx.Where("id = ? AND organisation_id = ?", offerID, org.ID).First(&offer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errNotFound("no such offer in organisation: %s", offerID)
			}
			return err
		}
		if !offer.Open() {
			return errInvalidState("offer %s is %s", offer.ID, offer.Status)
		}

		var bidder models.Player
		if err := tx.Where("id = ? AND organisation_id = ?", bidderID, org.ID).First(&bidder).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errNotFound("no such player in organisation: %s", bidderID)
			}
			return err
		}
		if !bidder.EnoughCoins(amount) {
			return errInsufficientFunds("player %s has %d coins, bid needs %d", bidder.ID, bidder.Coins, amount)
		}

		bidder.Coins -= amount
		if err := tx.Save(&bidder).Error; err != nil {
			return err
		}

		offer.Prize += amount
		if err := tx.Save(&offer).Error; err != nil {
			return err
		}

		bid = &models.Bid{OfferID: offer.ID, PlayerID: bidder.ID, Amount: amount}
		return tx.Create(bid).Error
	})
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// CompleteOffer settles an open offer: the completer runs the regular
// task-completion path for the offer's task and then receives the whole
// accumulated prize. Bidders get nothing back on completion — their coins
// became part of the prize they wagered toward incentivizing completion.
func (s *MarketService) CompleteOffer(org *models.Organisation, offerID, completerID string, now time.Time) (*models.Offer, error) {
	release := s.locks.Acquire(offerLockKey(offerID), playerLockKey(completerID))
	defer release()

	var out *models.Offer
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var offer models.Offer
		if err := tx.Where("id = ? AND organisation_id = ?", offerID, org.ID).First(&offer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errNotFound("no such offer in organisation: %s", offerID)
			}
			return err
		}
		if !offer.Open() {
			return errInvalidState("offer %s is %s", offer.ID, offer.Status)
		}

		var completer models.Player
		if err := tx.Preload("Roles").Where("id = ? AND organisation_id = ?", completerID, org.ID).First(&completer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errNotFound("no such player in organisation: %s", completerID)
			}
			return err
		}

		var task models.Task
		if err := tx.First(&task, "id = ?", offer.TaskID).Error; err != nil {
			return err
		}

		// Regular goal-completion path first, then the payout.
		if _, err := s.goals.completeTaskTx(tx, org, &completer, &task, now); err != nil {
			return err
		}

		completer.AddCoins(offer.Prize)
		if err := tx.Save(&completer).Error; err != nil {
			return err
		}

		if s.RetriggerOnPayout {
			if _, err := s.goals.pointsPassTx(tx, org, &completer, now); err != nil {
				return err
			}
			if err := tx.Save(&completer).Error; err != nil {
				return err
			}
		}

		offer.Status = models.OfferStatusCompleted
		if err := tx.Save(&offer).Error; err != nil {
			return err
		}
		out = &offer
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("💰 Offer completed: %s, prize %d paid to player %s", out.Name, out.Prize, completerID)
	return out, nil
}

// CancelOffer refunds all escrowed coins — the creator's initial prize and
// each bidder's own bids, tracked individually — and closes the offer.
func (s *MarketService) CancelOffer(org *models.Organisation, offerID string) (*models.Offer, error) {
	var offer models.Offer
	if err := s.DB.Where("id = ? AND organisation_id = ?", offerID, org.ID).First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("no such offer in organisation: %s", offerID)
		}
		return nil, err
	}
	return s.cancelOffer(&offer)
}

// cancelOffer acquires the offer, creator and bidder locks and performs the
// refunds in one transaction. New bids need the offer lock, so once it is
// held the bid set is frozen; the acquisition is retried if bids slipped in
// between reading the bidder set and locking it.
func (s *MarketService) cancelOffer(offer *models.Offer) (*models.Offer, error) {
	release, err := s.acquireOfferParticipants(offer)
	if err != nil {
		return nil, err
	}
	defer release()

	var out *models.Offer
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var fresh models.Offer
		if err := tx.First(&fresh, "id = ?", offer.ID).Error; err != nil {
			return err
		}
		if !fresh.Open() {
			return errInvalidState("offer %s is %s", fresh.ID, fresh.Status)
		}

		var creator models.Player
		if err := tx.First(&creator, "id = ?", fresh.CreatorID).Error; err != nil {
			return err
		}
		creator.Coins += fresh.InitialPrize
		if err := tx.Save(&creator).Error; err != nil {
			return err
		}

		var bids []models.Bid
		if err := tx.Where("offer_id = ?", fresh.ID).Find(&bids).Error; err != nil {
			return err
		}
		for _, b := range bids {
			var bidder models.Player
			if err := tx.First(&bidder, "id = ?", b.PlayerID).Error; err != nil {
				return err
			}
			bidder.Coins += b.Amount
			if err := tx.Save(&bidder).Error; err != nil {
				return err
			}
		}

		fresh.Prize = 0
		fresh.Status = models.OfferStatusCancelled
		if err := tx.Save(&fresh).Error; err != nil {
			return err
		}
		out = &fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("↩️ Offer cancelled: %s, escrow refunded", out.Name)
	return out, nil
}

// acquireOfferParticipants locks the offer, its creator and every bidder in
// one sorted acquisition. It re-reads the bidder set after locking and
// retries when a bid was placed in the window before the offer lock was held.
func (s *MarketService) acquireOfferParticipants(offer *models.Offer) (func(), error) {
	for {
		before, err := s.bidderIDs(offer.ID)
		if err != nil {
			return nil, err
		}
		keys := []string{offerLockKey(offer.ID), playerLockKey(offer.CreatorID)}
		for _, id := range before {
			keys = append(keys, playerLockKey(id))
		}
		release := s.locks.Acquire(keys...)

		after, err := s.bidderIDs(offer.ID)
		if err != nil {
			release()
			return nil, err
		}
		if sameStringSet(before, after) {
			return release, nil
		}
		release()
	}
}

func (s *MarketService) bidderIDs(offerID string) ([]string, error) {
	var ids []string
	err := s.DB.Model(&models.Bid{}).
		Distinct("player_id").
		Where("offer_id = ?", offerID).
		Pluck("player_id", &ids).Error
	return ids, err
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if !set[s] {
			return false
		}
	}
	return true
}

// OffersByPlayer lists the offers a player has created, newest first.
func (s *MarketService) OffersByPlayer(org *models.Organisation, playerID string) ([]models.Offer, error) {
	var offers []models.Offer
	err := s.DB.Where("organisation_id = ? AND creator_id = ?", org.ID, playerID).
		Preload("Task").
		Order("created_at DESC, id ASC").
		Find(&offers).Error
	return offers, err
}

// VisibleOffers lists the open offers the player may see: the task is
// tradeable and either unrestricted or shares a role with the player.
func (s *MarketService) VisibleOffers(org *models.Organisation, player *models.Player) ([]models.Offer, error) {
	var offers []models.Offer
	err := s.DB.Where("organisation_id = ? AND status = ?", org.ID, models.OfferStatusOpen).
		Preload("Task.Roles").
		Find(&offers).Error
	if err != nil {
		return nil, err
	}

	roleIDs := player.RoleIDs()
	visible := offers[:0]
	for _, o := range offers {
		if o.Task != nil && o.Task.Tradeable && o.Task.VisibleTo(roleIDs) {
			visible = append(visible, o)
		}
	}
	return visible, nil
}

// RecentOffers returns the top-N visible offers by creation time, newest
// first; equal timestamps fall back to offer id ascending.
func (s *MarketService) RecentOffers(org *models.Organisation, player *models.Player, count int) ([]models.Offer, error) {
	offers, err := s.VisibleOffers(org, player)
	if err != nil {
		return nil, err
	}
	sort.Slice(offers, func(i, j int) bool {
		if !offers[i].CreatedAt.Equal(offers[j].CreatedAt) {
			return offers[i].CreatedAt.After(offers[j].CreatedAt)
		}
		return offers[i].ID < offers[j].ID
	})
	return topN(offers, count), nil
}

// HighestOffers returns the top-N visible offers by prize, highest first;
// equal prizes fall back to offer id ascending.
func (s *MarketService) HighestOffers(org *models.Organisation, player *models.Player, count int) ([]models.Offer, error) {
	offers, err := s.VisibleOffers(org, player)
	if err != nil {
		return nil, err
	}
	sort.Slice(offers, func(i, j int) bool {
		if offers[i].Prize != offers[j].Prize {
			return offers[i].Prize > offers[j].Prize
		}
		return offers[i].ID < offers[j].ID
	})
	return topN(offers, count), nil
}

func topN(offers []models.Offer, count int) []models.Offer {
	if count > 0 && len(offers) > count {
		return offers[:count]
	}
	return offers
}

// ListBids returns all bids made for an offer, oldest first.
func (s *MarketService) ListBids(org *models.Organisation, offerID string) ([]models.Bid, error) {
	var offer models.Offer
	if err := s.DB.Where("id = ? AND organisation_id = ?", offerID, org.ID).First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("no such offer in organisation: %s", offerID)
		}
		return nil, err
	}
	var bids []models.Bid
	err := s.DB.Where("offer_id = ?", offer.ID).Order("created_at ASC, id ASC").Find(&bids).Error
	return bids, err
}

type UpdateOfferInput struct {
	Name     *string
	EndDate  *time.Time
	Deadline *time.Time
}

// UpdateOffer changes an open offer's name, end date or deadline. Dates are
// advisory: filtering and the expiry sweep use them, the engine never
// auto-expires an offer on its own.
func (s *MarketService) UpdateOffer(org *models.Organisation, offerID string, in UpdateOfferInput) (*models.Offer, error) {
	var offer models.Offer
	if err := s.DB.Where("id = ? AND organisation_id = ?", offerID, org.ID).First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("no such offer in organisation: %s", offerID)
		}
		return nil, err
	}
	if !offer.Open() {
		return nil, errInvalidState("offer %s is %s", offer.ID, offer.Status)
	}

	if in.Name != nil {
		offer.Name = *in.Name
		offer.Slug = slug.Make(*in.Name)
	}
	if in.EndDate != nil {
		offer.EndDate = in.EndDate
	}
	if in.Deadline != nil {
		offer.Deadline = in.Deadline
	}
	if err := s.DB.Save(&offer).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}
