package wire

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sickleave_notifier/internal/domain/notification"
)

func testMessage(t notification.Type) notification.PlannedMessage {
	return notification.PlannedMessage{
		ID:        uuid.MustParse("1c8b5a7e-5e0e-4a55-8b7a-1f1f6e0f9d11"),
		Fnr:       "12345678910",
		StartDate: notification.Date(2020, time.May, 2),
		Type:      t,
		State:     notification.Pending{},
	}
}

func TestEncode_LengthInvariantForEveryType(t *testing.T) {
	now := time.Date(2020, time.July, 2, 15, 20, 0, 0, time.UTC)
	for _, typ := range notification.AllTypes {
		t.Run(string(typ), func(t *testing.T) {
			record, err := Encode(Input{
				Message:   testMessage(typ),
				Now:       now,
				MaxDate:   notification.Date(2021, time.April, 30),
				OrgNumber: "999999999",
			})
			require.NoError(t, err)

			runes := []rune(record)
			require.Len(t, runes, RecordWidth)
			assert.Equal(t, 482, RecordWidth)

			assert.True(t, strings.HasPrefix(string(runes[HeaderWidth:]), "K278M830"))
			assert.True(t, strings.HasPrefix(string(runes[HeaderWidth+DataWidth:]), "K278M840"))
			assert.True(t, strings.HasPrefix(string(runes[HeaderWidth+DataWidth+PayloadWidth:]), "K278M890"))
		})
	}
}

func TestEncode_ActivityRequirementLayout(t *testing.T) {
	now := time.Date(2020, time.July, 2, 15, 20, 0, 0, time.UTC)
	record, err := Encode(Input{Message: testMessage(notification.Type8Week), Now: now})
	require.NoError(t, err)

	assert.Equal(t, "N2810   SENDMELDING", record[:19])
	assert.Equal(t, "02072020152000", record[23:37])
	assert.Equal(t, "12345678910", record[45:56])
	assert.Equal(t, "O", record[60:61])
	assert.Equal(t, "00001", record[61:66])

	payloadStart := HeaderWidth + DataWidth
	assert.Equal(t, "K278M84002052020", record[payloadStart:payloadStart+16])
	assert.Equal(t, "M-F234-1  ", record[HeaderWidth+8:HeaderWidth+18])
}

func TestEncode_StopUsesStopActionAndStatus(t *testing.T) {
	now := time.Date(2020, time.July, 2, 15, 20, 0, 0, time.UTC)
	record, err := Encode(Input{Message: testMessage(notification.TypeStop), Now: now})
	require.NoError(t, err)

	assert.Equal(t, "S", record[60:61])
	payloadStart := HeaderWidth + DataWidth
	p := record[payloadStart : payloadStart+PayloadWidth]
	assert.Equal(t, "02052020", p[8:16])
	assert.Equal(t, strings.Repeat(" ", 17), p[16:33], "no max date or org number")
	assert.Equal(t, "ST", p[33:35])
	assert.Equal(t, "SYKEPENGER STANSET", strings.TrimSpace(p[35:65]))
}

func TestEncode_MaxDateLetterCarriesMaxDateAndEmployer(t *testing.T) {
	record, err := Encode(Input{
		Message:   testMessage(notification.Type39Week),
		Now:       time.Date(2020, time.July, 2, 15, 20, 0, 0, time.UTC),
		MaxDate:   notification.Date(2021, time.April, 30),
		OrgNumber: "999999999",
	})
	require.NoError(t, err)

	payloadStart := HeaderWidth + DataWidth
	assert.Equal(t, "0205202030042021999999999", record[payloadStart+8:payloadStart+33])
}

func TestEncode_OverlongFieldIsFatal(t *testing.T) {
	msg := testMessage(notification.Type4Week)
	msg.Fnr = "123456789101"

	_, err := Encode(Input{Message: msg, Now: time.Now()})
	require.Error(t, err)

	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "header", encErr.Segment)
	assert.Equal(t, "fnr", encErr.Field)
	assert.True(t, notification.IsFatal(err))
}

func TestEncode_UnknownTypeFails(t *testing.T) {
	msg := testMessage("12WEEK")
	_, err := Encode(Input{Message: msg, Now: time.Now()})
	assert.Error(t, err)
}

func TestSegmentTables_SumToDeclaredWidth(t *testing.T) {
	for _, s := range []Segment{header, data, payload, trailer} {
		assert.Equal(t, s.Width, s.fixedWidth(), s.Name)
	}
}

func TestSegmentEncode_DetectsTableDefect(t *testing.T) {
	broken := Segment{Name: "broken", Width: 10, Fields: []Field{{Name: "a", Width: 4}}}
	_, err := broken.Encode(nil)

	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, 10, encErr.Want)
	assert.Equal(t, 4, encErr.Got)
}

func TestSegmentEncode_PadsMultiByteRunesByCharacter(t *testing.T) {
	s := Segment{Name: "s", Width: 6, Fields: []Field{{Name: "navn", Width: 6}}}
	out, err := s.Encode(map[string]string{"navn": "Ærø"})
	require.NoError(t, err)
	assert.Equal(t, "Ærø   ", out)
}
