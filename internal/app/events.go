package app

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sickleave_notifier/internal/domain/notification"
	"sickleave_notifier/internal/domain/registry"
)

var validate = validator.New()

// Settlement event types that create or extend a case.
const (
	EventPaid           = "utbetaling_utbetalt"
	EventWithoutPayment = "utbetaling_uten_utbetaling"
)

// SettlementMessage is the JSON contract of the settlement stream.
type SettlementMessage struct {
	Event         string          `json:"event" validate:"required"`
	PaymentID     string          `json:"utbetalingId" validate:"required"`
	Fnr           string          `json:"fødselsnummer" validate:"required,len=11,numeric"`
	OrgNumber     string          `json:"organisasjonsnummer" validate:"required,len=9,numeric"`
	StartDate     string          `json:"startdato" validate:"required,datetime=2006-01-02"`
	Fom           string          `json:"fom" validate:"required,datetime=2006-01-02"`
	Tom           string          `json:"tom" validate:"required,datetime=2006-01-02"`
	ConsumedDays  int             `json:"forbrukteSykedager" validate:"gte=0"`
	RemainingDays int             `json:"gjenståendeSykedager" validate:"gte=0"`
	MaxDate       string          `json:"maksdato" validate:"required,datetime=2006-01-02"`
	Amount        decimal.Decimal `json:"belop"`
}

// DecodeSettlement parses and validates a settlement record. The settlement stream
// is a strict contract: any violation is fatal.
func DecodeSettlement(payload []byte, received time.Time) (*notification.SettlementEvent, error) {
	var msg SettlementMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, notification.Fatal("decode settlement", err)
	}
	if msg.Event != EventPaid && msg.Event != EventWithoutPayment {
		return nil, notification.Fatal("decode settlement", fmt.Errorf("%w: %q", notification.ErrUnknownEventType, msg.Event))
	}
	if err := validate.Struct(msg); err != nil {
		return nil, notification.Fatal("validate settlement", err)
	}

	return &notification.SettlementEvent{
		ID:            uuid.New(),
		EventType:     msg.Event,
		PaymentID:     msg.PaymentID,
		Fnr:           msg.Fnr,
		OrgNumber:     msg.OrgNumber,
		StartDate:     mustDate(msg.StartDate),
		Fom:           mustDate(msg.Fom),
		Tom:           mustDate(msg.Tom),
		ConsumedDays:  msg.ConsumedDays,
		RemainingDays: msg.RemainingDays,
		MaxDate:       mustDate(msg.MaxDate),
		Amount:        msg.Amount,
		Created:       received,
		Payload:       payload,
	}, nil
}

// SickNoteMessage is the JSON contract of the sick-note stream.
type SickNoteMessage struct {
	ID      string          `json:"id" validate:"required"`
	Fnr     string          `json:"fnr" validate:"required,len=11,numeric"`
	Periods []PeriodMessage `json:"sykmeldingsperioder" validate:"required,min=1,dive"`
}

type PeriodMessage struct {
	Fom     string `json:"fom" validate:"required,datetime=2006-01-02"`
	Tom     string `json:"tom" validate:"required,datetime=2006-01-02"`
	Gradert bool   `json:"gradert"`
}

// DecodeSickNote returns a business-kind error for malformed notes: they are logged
// and skipped.
func DecodeSickNote(payload []byte) (SickNote, error) {
	var msg SickNoteMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return SickNote{}, notification.Business("decode sick note", err)
	}
	if err := validate.Struct(msg); err != nil {
		return SickNote{}, notification.Business("validate sick note", err)
	}

	note := SickNote{ID: msg.ID, Fnr: msg.Fnr}
	for _, p := range msg.Periods {
		note.Periods = append(note.Periods, registry.Period{Fom: mustDate(p.Fom), Tom: mustDate(p.Tom), Graded: p.Gradert})
	}
	return note, nil
}

// PersonEventMessage is the JSON contract of the person-event stream.
type PersonEventMessage struct {
	ID              string    `json:"hendelseId" validate:"required"`
	PersonIdents    []string  `json:"personidenter" validate:"required,min=1,dive,required"`
	Opplysningstype string    `json:"opplysningstype" validate:"required"`
	Endringstype    string    `json:"endringstype" validate:"required"`
	Created         time.Time `json:"opprettet" validate:"required"`
}

func DecodePersonEvent(payload []byte) (PersonEvent, error) {
	var msg PersonEventMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return PersonEvent{}, notification.Business("decode person event", err)
	}
	if err := validate.Struct(msg); err != nil {
		return PersonEvent{}, notification.Business("validate person event", err)
	}
	return PersonEvent{
		ID:              msg.ID,
		Opplysningstype: msg.Opplysningstype,
		Endringstype:    msg.Endringstype,
		PersonIdents:    msg.PersonIdents,
		Created:         msg.Created,
	}, nil
}

// mustDate parses a date already checked by the validator.
func mustDate(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(fmt.Sprintf("unvalidated date %q", s))
	}
	return notification.Date(t.Year(), t.Month(), t.Day())
}
