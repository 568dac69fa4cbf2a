package domain

import (
	"encoding/json"
	"fmt"
)

// Push notification channels emitted by the indexer's database triggers. The
// *_event / new_*_event pairs exist because older trigger versions used the
// new_ prefix; both carry the same payload shape.
const (
	ChannelBet              = "bet_event"
	ChannelNewBet           = "new_bet_event"
	ChannelMarket           = "market_event"
	ChannelNewMarket        = "new_market_event"
	ChannelMarketResolution = "market_resolution_event"
	ChannelWinningsClaim    = "winnings_claim_event"
	ChannelYieldDeposit     = "yield_deposit_event"
	ChannelProtocolFee      = "protocol_fee_event"
	ChannelBlockchain       = "blockchain_event"
)

// Channels lists every channel the listener subscribes to.
func Channels() []string {
	return []string{
		ChannelBet,
		ChannelNewBet,
		ChannelMarket,
		ChannelNewMarket,
		ChannelMarketResolution,
		ChannelWinningsClaim,
		ChannelYieldDeposit,
		ChannelProtocolFee,
		ChannelBlockchain,
	}
}

// Event is the closed set of decoded push notifications. The channel name is
// resolved to a concrete variant at the transport boundary by
// DecodeNotification; consumers dispatch with a type switch so adding a new
// event kind surfaces every dispatch site.
type Event interface {
	// Channel returns the notification channel the event arrived on.
	Channel() string
	// TxVersion returns the ledger ordering key carried in the payload.
	TxVersion() int64
}

// BetEvent signals an inserted or updated ledger bet row.
type BetEvent struct {
	Operation          string `json:"operation,omitempty"`
	BetID              int64  `json:"bet_id"`
	MarketID           int64  `json:"market_id"`
	UserAddr           string `json:"user_addr"`
	Position           bool   `json:"position"`
	Amount             int64  `json:"amount"`
	Claimed            *bool  `json:"claimed,omitempty"`
	TransactionVersion int64  `json:"transaction_version"`

	channel string
}

func (e BetEvent) Channel() string  { return e.channel }
func (e BetEvent) TxVersion() int64 { return e.TransactionVersion }

// MarketEvent signals an inserted or updated ledger market row.
type MarketEvent struct {
	Operation          string `json:"operation,omitempty"`
	MarketID           int64  `json:"market_id"`
	Question           string `json:"question"`
	EndTime            int64  `json:"end_time"`
	Resolved           *bool  `json:"resolved,omitempty"`
	Outcome            *bool  `json:"outcome,omitempty"`
	YieldProtocolAddr  string `json:"yield_protocol_addr"`
	TransactionVersion int64  `json:"transaction_version"`

	channel string
}

func (e MarketEvent) Channel() string  { return e.channel }
func (e MarketEvent) TxVersion() int64 { return e.TransactionVersion }

// MarketResolutionEvent signals an on-chain market resolution.
type MarketResolutionEvent struct {
	MarketID           int64 `json:"market_id"`
	Outcome            bool  `json:"outcome"`
	TotalYesPool       int64 `json:"total_yes_pool"`
	TotalNoPool        int64 `json:"total_no_pool"`
	TransactionVersion int64 `json:"transaction_version"`
}

func (e MarketResolutionEvent) Channel() string  { return ChannelMarketResolution }
func (e MarketResolutionEvent) TxVersion() int64 { return e.TransactionVersion }

// WinningsClaimEvent signals that a user claimed a winning bet.
type WinningsClaimEvent struct {
	BetID              int64  `json:"bet_id"`
	UserAddr           string `json:"user_addr"`
	WinningAmount      int64  `json:"winning_amount"`
	YieldShare         int64  `json:"yield_share"`
	TransactionVersion int64  `json:"transaction_version"`
}

func (e WinningsClaimEvent) Channel() string  { return ChannelWinningsClaim }
func (e WinningsClaimEvent) TxVersion() int64 { return e.TransactionVersion }

// YieldDepositEvent signals a yield deposit into a market's pool.
type YieldDepositEvent struct {
	MarketID           int64  `json:"market_id"`
	Amount             int64  `json:"amount"`
	ProtocolAddr       string `json:"protocol_addr"`
	TransactionVersion int64  `json:"transaction_version"`
}

func (e YieldDepositEvent) Channel() string  { return ChannelYieldDeposit }
func (e YieldDepositEvent) TxVersion() int64 { return e.TransactionVersion }

// ProtocolFeeEvent signals a protocol fee collection.
type ProtocolFeeEvent struct {
	MarketID           int64 `json:"market_id"`
	FeeAmount          int64 `json:"fee_amount"`
	TransactionVersion int64 `json:"transaction_version"`
}

func (e ProtocolFeeEvent) Channel() string  { return ChannelProtocolFee }
func (e ProtocolFeeEvent) TxVersion() int64 { return e.TransactionVersion }

// GenericEvent is the fallback channel carrying arbitrary indexer events that
// have no dedicated handler. It is recorded in the audit log only.
type GenericEvent struct {
	EventType          string          `json:"event_type"`
	MarketID           *int64          `json:"market_id,omitempty"`
	TransactionVersion int64           `json:"transaction_version"`
	EventData          json.RawMessage `json:"event_data"`
	CreatedAt          *string         `json:"created_at,omitempty"`
}

func (e GenericEvent) Channel() string  { return ChannelBlockchain }
func (e GenericEvent) TxVersion() int64 { return e.TransactionVersion }

// DecodeNotification maps a channel name and raw JSON payload to a typed
// Event. It returns ErrUnknownChannel for channels outside the closed set and
// ErrBadPayload (wrapped) when the payload does not decode.
func DecodeNotification(channel string, payload []byte) (Event, error) {
	switch channel {
	case ChannelBet, ChannelNewBet:
		var e BetEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadPayload, channel, err)
		}
		e.channel = channel
		return e, nil
	case ChannelMarket, ChannelNewMarket:
		var e MarketEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadPayload, channel, err)
		}
		e.channel = channel
		return e, nil
	case ChannelMarketResolution:
		var e MarketResolutionEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadPayload, channel, err)
		}
		return e, nil
	case ChannelWinningsClaim:
		var e WinningsClaimEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadPayload, channel, err)
		}
		return e, nil
	case ChannelYieldDeposit:
		var e YieldDepositEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadPayload, channel, err)
		}
		return e, nil
	case ChannelProtocolFee:
		var e ProtocolFeeEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadPayload, channel, err)
		}
		return e, nil
	case ChannelBlockchain:
		var e GenericEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadPayload, channel, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
}

// ExtractTxVersion pulls the transaction_version field out of a raw payload
// without fully decoding it, for audit logging of payloads that failed to
// decode as their typed variant.
func ExtractTxVersion(payload []byte) *int64 {
	var probe struct {
		TransactionVersion *int64 `json:"transaction_version"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil
	}
	return probe.TransactionVersion
}
