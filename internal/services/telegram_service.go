package services

import (
	"context"
	"fmt"
	"html"

	"refledger/internal/models"
	"refledger/internal/util"

	"github.com/go-telegram/bot"
)

// TelegramService reports withdrawals that need an operator to the admin
// chat. It implements Notifier.
type TelegramService struct {
	bt          *bot.Bot
	adminChatId int64
}

func NewTelegramService(token string, adminChatId int64) (*TelegramService, error) {
	bt, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		log.Error("Failed to create telegram bot: ", err)
		return nil, err
	}
	return &TelegramService{
		bt:          bt,
		adminChatId: adminChatId,
	}, nil
}

func (s *TelegramService) WithdrawalRejected(_ context.Context, w *models.WithdrawalRecord) {
	if _, err := util.SendTextMessage(s.bt, s.adminChatId, RejectedWithdrawalText(w)); err != nil {
		log.Errorf("Failed to notify about withdrawal %d: %v", w.Id.Int64, err)
	}
}

func RejectedWithdrawalText(w *models.WithdrawalRecord) string {
	text := fmt.Sprintf(
		"⚠️ <b>Withdrawal #%d rejected</b>\n\nTo: <code>%s</code>\nChannel: %s\nAmount: %s\nReason: %s\n",
		w.Id.Int64,
		w.To,
		w.Channel,
		util.FormatUnits(w.Amount),
		html.EscapeString(w.Message),
	)
	if w.TxHash.Valid {
		text += fmt.Sprintf("Tx: <code>%s</code>\n", w.TxHash.String)
	}
	return text + fmt.Sprintf("\nCompensate with POST /admin/compensate/%d", w.Id.Int64)
}
