package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// CreateExchangeWithDimensions materializes the buyer/seller/asset/pair
// dimension rows (creating them on first reference, touching last_active on
// repeat reference) and inserts the exchange row, all inside one
// transaction. Two concurrent callers racing on a new wallet still produce
// exactly one player row; two callers racing on the same (signature, index)
// produce exactly one exchange row.
func (s *Store) CreateExchangeWithDimensions(ctx context.Context, e NewExchange) (Exchange, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Exchange{}, fmt.Errorf("store: begin exchange tx: %w", err)
	}
	defer tx.Rollback(ctx)

	buyerID, err := upsertPlayer(ctx, tx, e.BuyerWallet, e.Timestamp)
	if err != nil {
		return Exchange{}, err
	}
	sellerID, err := upsertPlayer(ctx, tx, e.SellerWallet, e.Timestamp)
	if err != nil {
		return Exchange{}, err
	}
	assetID, err := upsertToken(ctx, tx, e.AssetMint)
	if err != nil {
		return Exchange{}, err
	}
	pairID, err := upsertToken(ctx, tx, e.PairMint)
	if err != nil {
		return Exchange{}, err
	}

	var out Exchange
	err = tx.QueryRow(ctx, `
		INSERT INTO market.exchanges
			(slot, signature, index, timestamp, side, buyer_id, seller_id, asset_id, pair_id, price, size, volume, fee, buddy)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (signature, index) DO NOTHING
		RETURNING id, slot, signature, index, timestamp, side, price, size, volume, fee, buddy
	`, e.Slot, e.Signature, e.Index, e.Timestamp, string(e.Side), buyerID, sellerID, assetID, pairID,
		e.Price, e.Size, e.Volume, e.Fee, e.Buddy,
	).Scan(&out.ID, &out.Slot, &out.Signature, &out.Index, &out.Timestamp, &out.Side,
		&out.Price, &out.Size, &out.Volume, &out.Fee, &out.Buddy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// A prior attempt already inserted this (signature, index); the
			// decoder's retry after a crash is absorbed here rather than erroring.
			return s.getExchangeBySignatureIndex(ctx, e.Signature, e.Index)
		}
		return Exchange{}, fmt.Errorf("store: insert exchange %s#%d: %w", e.Signature, e.Index, err)
	}
	out.Buyer = e.BuyerWallet
	out.Seller = e.SellerWallet
	out.Asset = e.AssetMint
	out.Pair = e.PairMint

	if err := tx.Commit(ctx); err != nil {
		return Exchange{}, fmt.Errorf("store: commit exchange tx: %w", err)
	}
	return out, nil
}

func (s *Store) getExchangeBySignatureIndex(ctx context.Context, signature string, index int) (Exchange, error) {
	var out Exchange
	err := s.pool.QueryRow(ctx, `
		SELECT x.id, x.slot, x.signature, x.index, x.timestamp, x.side,
			buyer.wallet_address, seller.wallet_address, asset.mint, pair.mint,
			x.price, x.size, x.volume, x.fee, x.buddy
		FROM market.exchanges x
		JOIN staratlas.players buyer  ON buyer.id  = x.buyer_id
		JOIN staratlas.players seller ON seller.id = x.seller_id
		JOIN staratlas.tokens  asset  ON asset.id  = x.asset_id
		JOIN staratlas.tokens  pair   ON pair.id   = x.pair_id
		WHERE x.signature = $1 AND x.index = $2
	`, signature, index).Scan(&out.ID, &out.Slot, &out.Signature, &out.Index, &out.Timestamp, &out.Side,
		&out.Buyer, &out.Seller, &out.Asset, &out.Pair, &out.Price, &out.Size, &out.Volume, &out.Fee, &out.Buddy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Exchange{}, ErrNotFound
		}
		return Exchange{}, fmt.Errorf("store: get exchange %s#%d: %w", signature, index, err)
	}
	return out, nil
}

func upsertPlayer(ctx context.Context, tx pgx.Tx, wallet string, seenAt time.Time) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO staratlas.players (wallet_address, first_seen, last_active)
		VALUES ($1, $2, $2)
		ON CONFLICT (wallet_address) DO UPDATE SET last_active = EXCLUDED.last_active
		RETURNING id
	`, wallet, seenAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: upsert player %s: %w", wallet, err)
	}
	return id, nil
}

func upsertToken(ctx context.Context, tx pgx.Tx, mint string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO staratlas.tokens (mint)
		VALUES ($1)
		ON CONFLICT (mint) DO UPDATE SET mint = EXCLUDED.mint
		RETURNING id
	`, mint).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: upsert token %s: %w", mint, err)
	}
	return id, nil
}
