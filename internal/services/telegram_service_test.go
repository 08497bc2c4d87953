package services

import (
	"database/sql"
	"testing"

	"refledger/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestRejectedWithdrawalText(t *testing.T) {
	amount, err := models.ParseAmount("1500000000000000000000")
	assert.NoError(t, err)

	text := RejectedWithdrawalText(&models.WithdrawalRecord{
		Id:      sql.NullInt64{Int64: 7, Valid: true},
		To:      userAddr,
		Channel: models.ChannelPool,
		Amount:  amount,
		Message: "transfer <reverted>",
		TxHash:  sql.NullString{String: "0xabc", Valid: true},
	})

	assert.Contains(t, text, "#7")
	assert.Contains(t, text, "1,500")
	assert.Contains(t, text, "transfer &lt;reverted&gt;")
	assert.Contains(t, text, "0xabc")
	assert.Contains(t, text, "/admin/compensate/7")
}
