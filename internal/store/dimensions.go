package store

import (
	"context"
	"fmt"
)

// ListPlayers returns every player, optionally filtered to a single wallet
// address (used by the read API's /players?wallet_address).
func (s *Store) ListPlayers(ctx context.Context, walletAddress string) ([]Player, error) {
	query := `SELECT id, wallet_address, username, first_seen, last_active FROM staratlas.players`
	args := []interface{}{}
	if walletAddress != "" {
		query += ` WHERE wallet_address = $1`
		args = append(args, walletAddress)
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list players: %w", err)
	}
	defer rows.Close()

	var out []Player
	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.ID, &p.WalletAddress, &p.Username, &p.FirstSeen, &p.LastActive); err != nil {
			return nil, fmt.Errorf("store: scan player: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListTokens returns every token.
func (s *Store) ListTokens(ctx context.Context) ([]Token, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, mint, name, symbol, token_type FROM staratlas.tokens ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list tokens: %w", err)
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.ID, &t.Mint, &t.Name, &t.Symbol, &t.TokenType); err != nil {
			return nil, fmt.Errorf("store: scan token: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ExchangeFilter selects at most one dimension to filter exchanges by; when
// more than one field is set the read API applies buyer > seller > asset
// priority before calling this, so only the first populated field is ever
// non-empty here.
type ExchangeFilter struct {
	BuyerID  int64
	SellerID int64
	AssetID  int64
}

// ListExchanges returns exchanges matching filter, or all exchanges when
// filter is the zero value.
func (s *Store) ListExchanges(ctx context.Context, filter ExchangeFilter) ([]Exchange, error) {
	query := `
		SELECT x.id, x.slot, x.signature, x.index, x.timestamp, x.side,
			buyer.wallet_address, seller.wallet_address, asset.mint, pair.mint,
			x.price, x.size, x.volume, x.fee, x.buddy
		FROM market.exchanges x
		JOIN staratlas.players buyer  ON buyer.id  = x.buyer_id
		JOIN staratlas.players seller ON seller.id = x.seller_id
		JOIN staratlas.tokens  asset  ON asset.id  = x.asset_id
		JOIN staratlas.tokens  pair   ON pair.id   = x.pair_id
	`
	var args []interface{}
	switch {
	case filter.BuyerID != 0:
		query += ` WHERE x.buyer_id = $1`
		args = append(args, filter.BuyerID)
	case filter.SellerID != 0:
		query += ` WHERE x.seller_id = $1`
		args = append(args, filter.SellerID)
	case filter.AssetID != 0:
		query += ` WHERE x.asset_id = $1`
		args = append(args, filter.AssetID)
	}
	query += ` ORDER BY x.timestamp DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var e Exchange
		if err := rows.Scan(&e.ID, &e.Slot, &e.Signature, &e.Index, &e.Timestamp, &e.Side,
			&e.Buyer, &e.Seller, &e.Asset, &e.Pair, &e.Price, &e.Size, &e.Volume, &e.Fee, &e.Buddy); err != nil {
			return nil, fmt.Errorf("store: scan exchange: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
