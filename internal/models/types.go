package models

import (
	"time"

	"github.com/punchamoorthee/irrigationcal/internal/domain"
	"github.com/samber/mo"
)

// Snapshot is the quickview payload returned by the upstream for one account.
// Only the fields the gateway renders are decoded.
type Snapshot struct {
	ID               string         `json:"id"`
	OrderStatus      string         `json:"orderStatus"`
	IrrigationNotice string         `json:"irrigationNotice"`
	Detail           ScheduleDetail `json:"displayFirstAccountScheduleDetail"`
	OnDateTime       string         `json:"onDateTime"`
	OffDateTime      string         `json:"offDateTime"`
}

type ScheduleDetail struct {
	Address string `json:"address"`
}

// Schedule is a Snapshot whose on/off timestamps have been combined with the
// configured UTC offset and parsed.
type Schedule struct {
	Snapshot Snapshot
	Start    time.Time
	End      time.Time
}

// FetchResult is the outcome of fetching one account.
type FetchResult struct {
	Account domain.Account
	Outcome mo.Result[Schedule]
}

func Succeeded(acct domain.Account, s Schedule) FetchResult {
	return FetchResult{Account: acct, Outcome: mo.Ok(s)}
}

func Failed(acct domain.Account, err error) FetchResult {
	return FetchResult{Account: acct, Outcome: mo.Err[Schedule](err)}
}

func (r FetchResult) OK() bool {
	return r.Outcome.IsOk()
}
