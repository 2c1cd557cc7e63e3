package telegram

import (
	"context"

	domainTelegram "sickleave_notifier/internal/domain/telegram"
	"sickleave_notifier/internal/infra/logger"
)

// OperatorAlerter posts alerts to the operator chat. With a nil client it only logs.
type OperatorAlerter struct {
	client domainTelegram.Client
	chatID int64
}

func NewOperatorAlerter(client domainTelegram.Client, chatID int64) *OperatorAlerter {
	return &OperatorAlerter{client: client, chatID: chatID}
}

func (a *OperatorAlerter) Alert(_ context.Context, text string) error {
	if a.client == nil {
		logger.Component("operator-alert").Warn(text)
		return nil
	}
	return a.client.SendMessage(a.chatID, text)
}
