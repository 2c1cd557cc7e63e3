package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceipt_RoundTripKeepsPadding(t *testing.T) {
	message := "Feilmelding" + strings.Repeat(" ", 89)
	record, err := EncodeReceipt(Receipt{
		Date:         "02072020",
		Time:         "152000",
		Fnr:          "12345678910",
		StatusOK:     "N",
		ErrorCode:    "XXXXXXXX",
		ErrorMessage: message,
	})
	require.NoError(t, err)

	r, err := ParseReceipt(record)
	require.NoError(t, err)
	assert.Equal(t, "02072020", r.Date)
	assert.Equal(t, "152000", r.Time)
	assert.Equal(t, "12345678910", r.Fnr)
	assert.Equal(t, "N", r.StatusOK)
	assert.Equal(t, "XXXXXXXX", r.ErrorCode)
	assert.Equal(t, message, r.ErrorMessage)
	assert.False(t, r.OK())
}

func TestParseReceipt_OK(t *testing.T) {
	record, err := EncodeReceipt(Receipt{Date: "02072020", Time: "152000", Fnr: "12345678910", StatusOK: "J"})
	require.NoError(t, err)

	r, err := ParseReceipt(record)
	require.NoError(t, err)
	assert.True(t, r.OK())
	assert.Equal(t, strings.Repeat(" ", 8), r.ErrorCode)
	assert.Empty(t, r.ErrorMessage)
}

func TestParseReceipt_MissingStatusFlag(t *testing.T) {
	for name, record := range map[string]string{
		"empty":        "",
		"too short":    "K278M810SENDMELDING",
		"blank status": strings.Repeat(" ", 80),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReceipt(record)
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestParseReceipt_ShortErrorCodeIsTolerated(t *testing.T) {
	record := strings.Repeat(" ", 60) + "NABC"
	r, err := ParseReceipt(record)
	require.NoError(t, err)
	assert.Equal(t, "N", r.StatusOK)
	assert.Equal(t, "ABC     ", r.ErrorCode)
}
