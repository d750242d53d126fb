// Package fee computes what an event coordinator owes before a gateway order is opened.
package fee

import (
	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
	"github.com/akylbek/payment-system/event-certificates/internal/config"
	"github.com/akylbek/payment-system/event-certificates/internal/models"
)

var minorPerMajor = decimal.NewFromInt(100)

type Input struct {
	Mode           models.FeeMode
	BaseCharge     decimal.Decimal
	DefaultFlatFee decimal.Decimal
	EventFee       decimal.Decimal
	CoordinatorFee decimal.Decimal
	Participants   int
}

// Quote is a computed charge. Amount is in major units; use MinorUnits for the gateway.
type Quote struct {
	Amount       decimal.Decimal
	PerStudent   decimal.Decimal
	Participants int
}

func (q Quote) MinorUnits() int64 {
	return ToMinorUnits(q.Amount)
}

// ToMinorUnits converts a major-unit amount to the smallest currency unit, rounding half away from zero.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Mul(minorPerMajor).Round(0).IntPart()
}

// ForEvent builds the calculator input from an event and the platform fee settings.
func ForEvent(e *models.Event, global config.FeeConfig) Input {
	return Input{
		Mode:           e.FeeMode,
		BaseCharge:     global.GlobalBaseCharge,
		DefaultFlatFee: global.DefaultFlatFee,
		EventFee:       e.EventFee,
		CoordinatorFee: e.CoordinatorFee,
		Participants:   e.ParticipantCount,
	}
}

// Calculate applies the event's pricing mode:
//
//	GLOBAL:   participants > 0 ? base × participants : default flat fee
//	EVENT:    event fee + coordinator fee, regardless of participants
//	DISABLED: rejected
//
// A non-positive result is always rejected so no empty order is ever created.
func Calculate(in Input) (Quote, error) {
	if in.Participants < 0 {
		return Quote{}, apperr.Validation("participant count cannot be negative")
	}

	var q Quote
	q.Participants = in.Participants

	switch in.Mode {
	case models.FeeModeGlobal, "":
		if in.Participants > 0 {
			q.PerStudent = in.BaseCharge
			q.Amount = in.BaseCharge.Mul(decimal.NewFromInt(int64(in.Participants)))
		} else {
			q.Amount = in.DefaultFlatFee
		}
	case models.FeeModeEvent:
		q.Amount = in.EventFee.Add(in.CoordinatorFee)
	case models.FeeModeDisabled:
		return Quote{}, apperr.ErrPaymentsDisabled
	default:
		return Quote{}, apperr.Validation("unknown fee mode " + string(in.Mode))
	}

	if !q.Amount.IsPositive() || q.MinorUnits() <= 0 {
		if in.Participants == 0 && in.Mode != models.FeeModeEvent {
			return Quote{}, apperr.Validation("no participants registered for this event")
		}
		return Quote{}, apperr.Validation("computed fee must be greater than zero")
	}
	return q, nil
}
