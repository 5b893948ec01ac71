package rewards

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/edulearn/rewards/models"
	"github.com/edulearn/rewards/storage"
)

// Purchase buys quantity units of itemID with coins. The coin debit, the stock
// decrement and the purchase row commit together; on any error nothing changes.
// The user row is locked before the item row.
func (e *Engine) Purchase(ctx context.Context, userID, itemID uint, quantity int) (models.UserPurchase, error) {
	if quantity < 1 {
		return models.UserPurchase{}, ErrInvalidQuantity
	}

	var p models.UserPurchase
	var coinsLeft int64
	err := e.runTx(ctx, "purchase", func(tx storage.Tx) error {
		p = models.UserPurchase{}
		bal, err := lockBalance(tx, userID)
		if err != nil {
			return err
		}
		item, err := tx.LockItem(itemID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}
		if !item.IsActive {
			return ErrItemNotFound
		}

		qty := int64(quantity)
		if !item.Unlimited() && item.StockQuantity < qty {
			return ErrInsufficientStock
		}
		if item.Price > 0 && qty > math.MaxInt64/item.Price {
			return ErrInsufficientCoins
		}
		total := item.Price * qty
		if bal.Coins < total {
			return ErrInsufficientCoins
		}

		bal.Coins -= total
		if err := tx.SaveBalance(&bal); err != nil {
			return err
		}
		if !item.Unlimited() {
			if err := tx.SetStock(item.ID, item.StockQuantity-qty); err != nil {
				return err
			}
		}
		p = models.UserPurchase{
			UserID:      userID,
			ItemID:      item.ID,
			Quantity:    quantity,
			TotalCost:   total,
			PurchasedAt: e.now(),
		}
		coinsLeft = bal.Coins
		return tx.CreatePurchase(&p)
	})
	if err != nil {
		return models.UserPurchase{}, err
	}

	e.log.Info("store purchase",
		zap.Uint("user_id", userID),
		zap.Uint("item_id", itemID),
		zap.Int("quantity", quantity),
		zap.Int64("total_cost", p.TotalCost),
		zap.Int64("coins_left", coinsLeft),
	)
	e.invalidateBoard(ctx)
	return p, nil
}

// StoreItems lists what is currently for sale.
func (e *Engine) StoreItems(ctx context.Context) ([]models.StoreItem, error) {
	return e.store.ActiveItems(ctx)
}

// CreateItem adds a store item. StockQuantity -1 means unlimited.
func (e *Engine) CreateItem(ctx context.Context, it models.StoreItem) (models.StoreItem, error) {
	it.Name = cleanText(it.Name, 128)
	it.Description = cleanText(it.Description, 1000)
	switch {
	case it.Name == "":
		return models.StoreItem{}, fmt.Errorf("%w: item name is required", ErrInvalidInput)
	case it.Price < 0:
		return models.StoreItem{}, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	case it.StockQuantity < models.UnlimitedStock:
		return models.StoreItem{}, fmt.Errorf("%w: stock must be -1 or at least 0", ErrInvalidInput)
	}
	err := e.runTx(ctx, "create_item", func(tx storage.Tx) error {
		it.ID = 0
		return tx.CreateItem(&it)
	})
	if err != nil {
		return models.StoreItem{}, err
	}
	e.log.Info("store item created", zap.Uint("item_id", it.ID), zap.String("name", it.Name))
	return it, nil
}

// Restock sets the stock of an item under its row lock.
func (e *Engine) Restock(ctx context.Context, itemID uint, stock int64) (models.StoreItem, error) {
	if stock < models.UnlimitedStock {
		return models.StoreItem{}, fmt.Errorf("%w: stock must be -1 or at least 0", ErrInvalidInput)
	}
	var item models.StoreItem
	err := e.runTx(ctx, "restock", func(tx storage.Tx) error {
		var err error
		item, err = tx.LockItem(itemID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}
		item.StockQuantity = stock
		return tx.SetStock(itemID, stock)
	})
	if err != nil {
		return models.StoreItem{}, err
	}
	e.log.Info("store item restocked", zap.Uint("item_id", itemID), zap.Int64("stock", stock))
	return item, nil
}
