package services

import (
	"context"
	"strings"

	"refledger/internal/models"
	"refledger/internal/signature"
)

// IntakeService is the signed-request entry point. Every call answers with
// a Result envelope.
type IntakeService struct {
	referrals *ReferralService
	drawings  *DrawingService
	guard     ReplayGuard
}

func NewIntakeService(referrals *ReferralService, drawings *DrawingService, guard ReplayGuard) *IntakeService {
	return &IntakeService{
		referrals: referrals,
		drawings:  drawings,
		guard:     guard,
	}
}

// Register binds the signing account to the owner of the inviter link.
func (s *IntakeService) Register(ctx context.Context, req models.RegistrationRequest) *models.Result {
	addr, err := signature.NormalizeAddress(req.Account)
	if err != nil {
		return models.Fail(err)
	}
	msg := signature.RegisterMessage(req.Account)
	if err := signature.Verify(msg, req.Signature, addr); err != nil {
		return models.Fail(err)
	}
	// the link is not signed; a retry with a corrected link is a new intent
	if err := s.claim(ctx, signature.ReplayKey(addr, msg, strings.TrimSpace(req.InviterLink))); err != nil {
		return models.Fail(err)
	}

	if err := s.referrals.BindInviter(ctx, addr, req.Readonly, req.InviterLink); err != nil {
		return models.Fail(err)
	}
	return models.Success(addr)
}

// Drawing pays out accrued commission to the signing account.
func (s *IntakeService) Drawing(ctx context.Context, req models.DrawingRequest) *models.Result {
	approved, err := s.drawings.AuthorizeDrawing(ctx, req)
	if err != nil {
		return models.Fail(err)
	}
	msg := signature.DrawingMessage(req.Channel, req.Account, req.Amount)
	if err := s.claim(ctx, signature.ReplayKey(approved.Account, msg)); err != nil {
		return models.Fail(err)
	}

	record, err := s.drawings.ExecuteDrawing(ctx, *approved)
	if err != nil {
		return models.Fail(err)
	}
	return models.Success(record)
}

func (s *IntakeService) claim(ctx context.Context, key string) error {
	if s.guard == nil {
		return nil
	}
	ok, err := s.guard.Claim(ctx, key)
	if err != nil {
		return models.Internal(err)
	}
	if !ok {
		return models.NewError(models.SignatureRejected, "signature already used")
	}
	return nil
}
