package store

import "time"

// Direction is the traversal direction of a cursor. It is immutable for the
// lifetime of a cursor: rewriting it means deleting and recreating the row.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// Cursor is one row of indexer.indexer: the resumable progress checkpoint
// for a single named harvester.
type Cursor struct {
	Name       string
	ProgramID  string
	Direction  Direction
	Signature  *string
	Block      *int64
	Timestamp  *time.Time
	Finished   *bool
	FetchLimit int
}

// CursorPatch is a partial update applied to a Cursor. Direction is
// deliberately absent: it cannot be changed once a cursor is created.
type CursorPatch struct {
	Signature *string
	Block     *int64
	Timestamp *time.Time
	Finished  *bool
}

// Signature is one row of indexer.signatures, content-addressed by its
// base58 signature string.
type Signature struct {
	Signature string
	Slot      int64
	Timestamp time.Time
}

// ProgramSignature is one row of indexer.program_signatures: the
// many-to-many link between a program and a signature that references it.
type ProgramSignature struct {
	ProgramID string
	Signature string
	Processed bool
}

// Side is which party in an Exchange initiated the trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Exchange is one canonical trade row in market.exchanges.
type Exchange struct {
	ID        int64
	Slot      int64
	Signature string
	Index     int
	Timestamp time.Time
	Side      Side
	Buyer     string // wallet address
	Seller    string // wallet address
	Asset     string // mint
	Pair      string // mint
	Price     float64
	Size      int32
	Volume    float64
	Fee       float64
	Buddy     float64
}

// NewExchange carries everything needed to insert an Exchange plus
// materialize its player/token dimensions on demand.
type NewExchange struct {
	Slot         int64
	Signature    string
	Index        int
	Timestamp    time.Time
	Side         Side
	BuyerWallet  string
	SellerWallet string
	AssetMint    string
	PairMint     string
	Price        float64
	Size         int32
	Volume       float64
	Fee          float64
	Buddy        float64
}

// Player is one row of staratlas.players, lazily created on first reference.
type Player struct {
	ID            int64
	WalletAddress string
	Username      *string
	FirstSeen     time.Time
	LastActive    time.Time
}

// Token is one row of staratlas.tokens, lazily created on first reference.
type Token struct {
	ID        int64
	Mint      string
	Name      *string
	Symbol    *string
	TokenType *string
}
