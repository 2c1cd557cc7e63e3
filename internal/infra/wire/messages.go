package wire

import (
	"fmt"
	"strings"
	"time"

	"sickleave_notifier/internal/domain/notification"
)

const (
	HeaderWidth  = 72
	DataWidth    = 201
	PayloadWidth = 116
	TrailerWidth = 93
	RecordWidth  = HeaderWidth + DataWidth + PayloadWidth + TrailerWidth // 482

	dateLayout = "02012006"
	timeLayout = "150405"
)

var header = Segment{Name: "header", Width: HeaderWidth, Fields: []Field{
	{Name: "kode", Width: 8, Default: "N2810"},
	{Name: "aksjon", Width: 11, Default: "SENDMELDING"},
	{Name: "kilde", Width: 4, Default: "SPVA"},
	{Name: "dato", Width: 8},
	{Name: "klokke", Width: 6},
	{Name: "bruker", Width: 8, Default: "SPVARSEL"},
	{Name: "fnr", Width: 11},
	{Name: "tknr", Width: 4},
	{Name: "aksjonskode", Width: 1},
	{Name: "antall", Width: 5, Justify: Right, Fill: '0', Default: "1"},
	{Name: "reserve", Width: 6},
}}

var data = Segment{Name: "data", Width: DataWidth, Fields: []Field{
	{Name: "kode", Width: 8, Default: "K278M830"},
	{Name: "meldingId", Width: 10},
	{Name: "versjon", Width: 3, Justify: Right, Fill: '0', Default: "1"},
	{Name: "dato", Width: 8},
	{Name: "referanse", Width: 36},
	{Name: "mottaker", Width: 2, Default: "SB"},
	{Name: "saksbehandler", Width: 8, Default: "SPVARSEL"},
	{Name: "tekst", Width: 40},
	{Name: "reserve", Width: 86},
}}

var payload = Segment{Name: "payload", Width: PayloadWidth, Fields: []Field{
	{Name: "kode", Width: 8, Default: "K278M840"},
	{Name: "startdato", Width: 8},
	{Name: "maksdato", Width: 8},
	{Name: "orgnr", Width: 9},
	{Name: "statuskode", Width: 2},
	{Name: "statustekst", Width: 30},
	{Name: "reserve", Width: 51},
}}

var trailer = Segment{Name: "trailer", Width: TrailerWidth, Fields: []Field{
	{Name: "kode", Width: 8, Default: "K278M890"},
	{Name: "segmenter", Width: 3, Justify: Right, Fill: '0', Default: "4"},
	{Name: "lengde", Width: 5, Justify: Right, Fill: '0', Default: fmt.Sprint(RecordWidth)},
	{Name: "fnr", Width: 11},
	{Name: "reserve", Width: 66},
}}

// family holds what differs between message types.
type family struct {
	actionCode string
	messageID  string
	text       string
	payload    func(in Input) map[string]string
}

const (
	actionCreate = "O"
	actionStop   = "S"

	stopStatusCode = "ST"
	stopStatusText = "SYKEPENGER STANSET"
)

var families = map[notification.Type]family{
	notification.Type4Week: {
		actionCode: actionCreate,
		messageID:  "M-F226-1",
		text:       "INFORMASJON ETTER 4 UKER",
		payload:    startDateOnly,
	},
	notification.Type8Week: {
		actionCode: actionCreate,
		messageID:  "M-F234-1",
		text:       "AKTIVITETSKRAV 8 UKER",
		payload:    startDateOnly,
	},
	notification.Type39Week: {
		actionCode: actionCreate,
		messageID:  "M-F222-1",
		text:       "MAKSDATO 39 UKER",
		payload: func(in Input) map[string]string {
			return map[string]string{
				"startdato": formatDate(in.Message.StartDate),
				"maksdato":  formatDate(in.MaxDate),
				"orgnr":     in.OrgNumber,
			}
		},
	},
	notification.TypeStop: {
		actionCode: actionStop,
		messageID:  "M-F221-1",
		text:       "STANS AV SYKEPENGER",
		payload: func(in Input) map[string]string {
			return map[string]string{
				"startdato":   formatDate(in.Message.StartDate),
				"statuskode":  stopStatusCode,
				"statustekst": stopStatusText,
			}
		},
	},
}

func startDateOnly(in Input) map[string]string {
	return map[string]string{"startdato": formatDate(in.Message.StartDate)}
}

// Input is everything needed to encode one planned message.
type Input struct {
	Message   notification.PlannedMessage
	Now       time.Time // formatted as given, expected in notification.Oslo
	MaxDate   time.Time // 39WEEK only
	OrgNumber string    // 39WEEK only
}

// Encode renders the planned message as one 482 character record.
func Encode(in Input) (string, error) {
	fam, ok := families[in.Message.Type]
	if !ok {
		return "", fmt.Errorf("no wire format for type %q", in.Message.Type)
	}
	now := in.Now // callers pass the reference time already in civil time

	segments := []struct {
		seg    Segment
		values map[string]string
	}{
		{header, map[string]string{
			"dato":        now.Format(dateLayout),
			"klokke":      now.Format(timeLayout),
			"fnr":         in.Message.Fnr,
			"aksjonskode": fam.actionCode,
		}},
		{data, map[string]string{
			"meldingId": fam.messageID,
			"dato":      now.Format(dateLayout),
			"referanse": in.Message.ID.String(),
			"tekst":     fam.text,
		}},
		{payload, fam.payload(in)},
		{trailer, map[string]string{"fnr": in.Message.Fnr}},
	}

	var b strings.Builder
	for _, s := range segments {
		out, err := s.seg.Encode(s.values)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}
	record := b.String()
	if n := len([]rune(record)); n != RecordWidth {
		return "", &EncodingError{Segment: "record", Want: RecordWidth, Got: n}
	}
	return record, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
