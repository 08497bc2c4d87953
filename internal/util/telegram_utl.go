package util

import (
	"context"
	"math/big"
	"time"

	"refledger/internal/config"
	"refledger/internal/models"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var log = config.InitLogger()

func SendTextMessage(bt *bot.Bot, chatId int64, text string) (*tgmodels.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg, err := bt.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatId,
		Text:      text,
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		log.Error("Failed to send message: ", err)
		return nil, err
	}

	return msg, nil
}

// FormatUnits renders a base-unit amount with 18 decimals and thousands
// separators, e.g. 1234500000000000000000 -> "1,234.5".
func FormatUnits(a models.Amount) string {
	whole, frac := new(big.Int).QuoRem(a.Big(), big.NewInt(1e18), new(big.Int))

	res := whole.String()
	if whole.IsInt64() {
		res = message.NewPrinter(language.English).Sprintf("%d", whole.Int64())
	}

	if frac.Sign() == 0 {
		return res
	}
	digits := []byte(frac.String())
	for len(digits) < 18 {
		digits = append([]byte{'0'}, digits...)
	}
	for len(digits) > 0 && digits[len(digits)-1] == '0' {
		digits = digits[:len(digits)-1]
	}
	return res + "." + string(digits)
}
