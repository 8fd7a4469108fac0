package application

import (
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/vulpemventures/funder/internal/core/domain"
	wallet "github.com/vulpemventures/funder/pkg/single-key-wallet"
)

const (
	DefaultVersion = "dev"
	DefaultCommit  = "none"
	DefaultDate    = "unknown"

	StatusTimeLayout = "2006-01-02 15:04:05"
)

const (
	ConnectivityChanged FundingEventType = iota
	FundingSucceeded
	FundingFailed
	ClientAdded
	ClientRemoved
)

var fundingEventTypeString = map[FundingEventType]string{
	ConnectivityChanged: "ConnectivityChanged",
	FundingSucceeded:    "FundingSucceeded",
	FundingFailed:       "FundingFailed",
	ClientAdded:         "ClientAdded",
	ClientRemoved:       "ClientRemoved",
}

type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func (i BuildInfo) withDefaults() BuildInfo {
	if len(i.Version) <= 0 {
		i.Version = DefaultVersion
	}
	if len(i.Commit) <= 0 {
		i.Commit = DefaultCommit
	}
	if len(i.Date) <= 0 {
		i.Date = DefaultDate
	}
	return i
}

// Status is the state of the service as exposed to clients. LastUpdate is
// zero until the first refresh.
type Status struct {
	BuildInfo
	Connectivity domain.ConnectivityStatus
	LastUpdate   time.Time
}

// LastUpdateString formats the last update time, or returns "None" if the
// service never refreshed.
func (s Status) LastUpdateString() string {
	if s.LastUpdate.IsZero() {
		return "None"
	}
	return s.LastUpdate.UTC().Format(StatusTimeLayout)
}

// FundArgs is the unparsed form of a funding request, with the locking
// script hex encoded.
type FundArgs struct {
	ClientID      string
	Satoshi       uint64
	OutputCount   uint32
	MultiTx       bool
	LockingScript string
}

type FundingResult struct {
	Outpoints []domain.Outpoint
	Txs       []*wire.MsgTx
}

// TxsHex returns the funding txs hex encoded, in creation order.
func (r FundingResult) TxsHex() ([]string, error) {
	txs := make([]string, 0, len(r.Txs))
	for _, tx := range r.Txs {
		txHex, err := wallet.TxToHex(tx)
		if err != nil {
			return nil, err
		}
		txs = append(txs, txHex)
	}
	return txs, nil
}

type FundingEventType int

func (t FundingEventType) String() string {
	return fundingEventTypeString[t]
}

// FundingEvent notifies about a change of state of the service. Only the
// fields related to the event type are set.
type FundingEvent struct {
	EventType    FundingEventType
	ClientID     string
	Outpoints    []domain.Outpoint
	Connectivity domain.ConnectivityStatus
	Error        string
	Timestamp    time.Time
}

type FundingEventHandler func(event FundingEvent)
