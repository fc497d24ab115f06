// Package exchange moves items between the market and users' ownership.
//
// An item is either available (no owner) or owned by exactly one user.
// Purchase takes an available item and debits the buyer; Sell returns an owned
// item to the market and credits the seller. Each transition reads, checks and
// writes inside a single storage transaction with the item and user rows
// locked, so concurrent purchases of the same item cannot both succeed.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/IlyasAtabaev731/market/internal/events"
	"github.com/IlyasAtabaev731/market/internal/storage"
)

const publishTimeout = 5 * time.Second

type Store interface {
	WithTx(ctx context.Context, fn func(tx *storage.Tx) error) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetItemByName(ctx context.Context, name string) (*models.Item, error)
	AvailableItems(ctx context.Context) ([]models.Item, error)
	ItemsOwnedBy(ctx context.Context, userID int64) ([]models.Item, error)
}

// Receipt is the outcome of a committed transition.
type Receipt struct {
	Item   models.Item
	Budget models.Money
}

// Market is one user's view of the catalog.
type Market struct {
	Budget    models.Money
	Available []models.Item
	Owned     []models.Item
}

type Service struct {
	log       *slog.Logger
	store     Store
	publisher events.Publisher
	now       func() time.Time
}

func New(log *slog.Logger, store Store, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		log:       log,
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// IsRuleViolation reports whether err is an expected business outcome rather
// than a failure of the service.
func IsRuleViolation(err error) bool {
	return errors.Is(err, models.ErrItemNotFound) ||
		errors.Is(err, models.ErrItemAlreadyOwned) ||
		errors.Is(err, models.ErrNotOwner) ||
		errors.Is(err, models.ErrInsufficientFunds)
}

// Purchase transfers an available item to the buyer and debits its price.
func (s *Service) Purchase(ctx context.Context, buyerID, itemID int64) (Receipt, error) {
	const op = "exchange.Purchase"

	var receipt Receipt
	err := s.store.WithTx(ctx, func(tx *storage.Tx) error {
		item, err := tx.Item(ctx, itemID)
		if err != nil {
			return err
		}
		if !item.Available() {
			return models.ErrItemAlreadyOwned
		}

		buyer, err := tx.User(ctx, buyerID)
		if err != nil {
			return err
		}
		if !buyer.CanPurchase(item) {
			return models.ErrInsufficientFunds
		}

		if err := tx.Debit(ctx, buyer.ID, item.Price); err != nil {
			return err
		}
		if err := tx.TransferOwnership(ctx, item.ID, &buyer.ID); err != nil {
			return err
		}

		item.Owner = &buyer.ID
		receipt = Receipt{Item: *item, Budget: buyer.Budget - item.Price}
		return nil
	})
	if err != nil {
		return Receipt{}, s.fail(op, err, slog.Int64("buyer_id", buyerID), slog.Int64("item_id", itemID))
	}

	s.log.Info("Item purchased",
		slog.Int64("buyer_id", buyerID),
		slog.String("item", receipt.Item.Name),
		slog.String("price", receipt.Item.Price.String()),
	)
	s.publish(ctx, events.KindPurchase, buyerID, receipt)

	return receipt, nil
}

// Sell returns an item owned by the seller to the market and credits its
// price. Selling an available item or another user's item fails with
// models.ErrNotOwner.
func (s *Service) Sell(ctx context.Context, sellerID, itemID int64) (Receipt, error) {
	const op = "exchange.Sell"

	var receipt Receipt
	err := s.store.WithTx(ctx, func(tx *storage.Tx) error {
		item, err := tx.Item(ctx, itemID)
		if err != nil {
			return err
		}

		seller, err := tx.User(ctx, sellerID)
		if err != nil {
			return err
		}
		if !seller.CanSell(item) {
			return models.ErrNotOwner
		}

		if err := tx.Credit(ctx, seller.ID, item.Price); err != nil {
			return err
		}
		if err := tx.TransferOwnership(ctx, item.ID, nil); err != nil {
			return err
		}

		item.Owner = nil
		receipt = Receipt{Item: *item, Budget: seller.Budget + item.Price}
		return nil
	})
	if err != nil {
		return Receipt{}, s.fail(op, err, slog.Int64("seller_id", sellerID), slog.Int64("item_id", itemID))
	}

	s.log.Info("Item sold",
		slog.Int64("seller_id", sellerID),
		slog.String("item", receipt.Item.Name),
		slog.String("price", receipt.Item.Price.String()),
	)
	s.publish(ctx, events.KindSell, sellerID, receipt)

	return receipt, nil
}

// PurchaseByName resolves the item by its unique name and purchases it.
func (s *Service) PurchaseByName(ctx context.Context, buyerID int64, name string) (Receipt, error) {
	item, err := s.itemByName(ctx, "exchange.PurchaseByName", name)
	if err != nil {
		return Receipt{}, err
	}
	return s.Purchase(ctx, buyerID, item.ID)
}

// SellByName resolves the item by its unique name and sells it.
func (s *Service) SellByName(ctx context.Context, sellerID int64, name string) (Receipt, error) {
	item, err := s.itemByName(ctx, "exchange.SellByName", name)
	if err != nil {
		return Receipt{}, err
	}
	return s.Sell(ctx, sellerID, item.ID)
}

func (s *Service) itemByName(ctx context.Context, op, name string) (*models.Item, error) {
	item, err := s.store.GetItemByName(ctx, name)
	if err != nil {
		return nil, s.fail(op, err, slog.String("item", name))
	}
	return item, nil
}

// Available lists the items nobody owns.
func (s *Service) Available(ctx context.Context) ([]models.Item, error) {
	items, err := s.store.AvailableItems(ctx)
	if err != nil {
		return nil, s.fail("exchange.Available", err)
	}
	return items, nil
}

// Market returns the user's budget, the available items and the items the
// user owns.
func (s *Service) Market(ctx context.Context, userID int64) (Market, error) {
	const op = "exchange.Market"

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Market{}, s.fail(op, err, slog.Int64("user_id", userID))
	}
	available, err := s.store.AvailableItems(ctx)
	if err != nil {
		return Market{}, s.fail(op, err)
	}
	owned, err := s.store.ItemsOwnedBy(ctx, userID)
	if err != nil {
		return Market{}, s.fail(op, err, slog.Int64("user_id", userID))
	}

	return Market{Budget: user.Budget, Available: available, Owned: owned}, nil
}

// fail passes rule violations through untouched and wraps everything else.
func (s *Service) fail(op string, err error, attrs ...any) error {
	if IsRuleViolation(err) || errors.Is(err, models.ErrUserNotFound) {
		s.log.Debug("Exchange rejected", append(attrs, slog.String("op", op), slog.String("reason", err.Error()))...)
		return err
	}
	s.log.Error("Exchange failed", append(attrs, slog.String("op", op), slog.Any("error", err))...)
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) publish(ctx context.Context, kind events.Kind, userID int64, receipt Receipt) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := events.TradeEvent{
		Kind:     kind,
		ItemID:   receipt.Item.ID,
		ItemName: receipt.Item.Name,
		UserID:   userID,
		Price:    receipt.Item.Price,
		Budget:   receipt.Budget,
		At:       s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Error("Failed to publish trade event", slog.String("kind", string(kind)), slog.Any("error", err))
	}
}
