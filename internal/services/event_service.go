package services

import (
	"context"
	"strings"

	"refledger/internal/models"
	"refledger/internal/monitoring"
)

// EventService turns chain events into ledger credits. It implements
// chain.EventHandler.
type EventService struct {
	ledger  *LedgerService
	sources map[string]models.Channel
}

// NewEventService takes the action sources as address -> channel name.
// Entries with an unknown channel are dropped with an error log.
func NewEventService(ledger *LedgerService, sources map[string]string) *EventService {
	res := make(map[string]models.Channel, len(sources))
	for addr, name := range sources {
		ch, err := models.ParseChannel(name)
		if err != nil {
			log.Errorf("Action source %s: %v", addr, err)
			continue
		}
		res[strings.ToLower(addr)] = ch
	}
	return &EventService{
		ledger:  ledger,
		sources: res,
	}
}

// HandleTransfer credits the recipient of a transfer sent by a whitelisted
// source. Business rejections are logged and skipped so the feed moves on;
// only internal failures are returned for a retry.
func (s *EventService) HandleTransfer(ctx context.Context, e models.TransferEvent) error {
	ch, ok := s.sources[strings.ToLower(e.From)]
	if !ok || e.Amount.Sign() <= 0 {
		return nil
	}

	err := s.ledger.CreditAction(ctx, models.ActionEvent{
		Referred: e.To,
		Channel:  ch,
		Value:    e.Amount,
		EventKey: e.Key(),
	})
	if err == nil {
		return nil
	}
	if models.KindOf(err) == models.InternalError {
		return err
	}
	log.Warnf("Transfer %s skipped: %v", e.Key(), err)
	return nil
}

func (s *EventService) HandleStake(_ context.Context, e models.StakeEvent) error {
	monitoring.StakeEvents.WithLabelValues(e.Kind).Inc()
	log.Infof("Pool %d %s: %s by %s (tx %s)", e.PoolId, e.Kind, e.Amount, e.Address, e.TxHash)
	return nil
}
