package wire

import "strings"

const StatusOK = "J"

var receipt = Segment{Name: "receipt", Width: Rest, Fields: []Field{
	{Name: "kode", Width: 8},
	{Name: "aksjon", Width: 11},
	{Name: "kilde", Width: 4},
	{Name: "dato", Width: 8},
	{Name: "klokke", Width: 6},
	{Name: "bruker", Width: 8},
	{Name: "fnr", Width: 11},
	{Name: "tknr", Width: 4},
	{Name: "statusOk", Width: 1},
	{Name: "feilkode", Width: 8},
	{Name: "feilmelding", Width: Rest},
}}

// Receipt is the legacy system's answer to one record.
type Receipt struct {
	Date         string
	Time         string
	Fnr          string
	StatusOK     string
	ErrorCode    string
	ErrorMessage string
}

func (r Receipt) OK() bool { return r.StatusOK == StatusOK }

// ParseReceipt decodes a receipt record. Field values keep their padding.
func ParseReceipt(record string) (Receipt, error) {
	if n := len([]rune(record)); n < receipt.fixedWidth() {
		// the error code may be cut short, but the status flag must be present
		if n <= statusOffset() {
			return Receipt{}, &ParseError{Segment: receipt.Name, Reason: "status flag missing"}
		}
		record += strings.Repeat(" ", receipt.fixedWidth()-n)
	}
	v, err := receipt.Decode(record)
	if err != nil {
		return Receipt{}, err
	}
	if strings.TrimSpace(v["statusOk"]) == "" {
		return Receipt{}, &ParseError{Segment: receipt.Name, Reason: "status flag missing"}
	}
	return Receipt{
		Date:         v["dato"],
		Time:         v["klokke"],
		Fnr:          v["fnr"],
		StatusOK:     v["statusOk"],
		ErrorCode:    v["feilkode"],
		ErrorMessage: v["feilmelding"],
	}, nil
}

// EncodeReceipt renders a receipt the way the legacy system does.
func EncodeReceipt(r Receipt) (string, error) {
	return receipt.Encode(map[string]string{
		"kode":        "K278M810",
		"aksjon":      "SENDMELDING",
		"dato":        r.Date,
		"klokke":      r.Time,
		"fnr":         r.Fnr,
		"statusOk":    r.StatusOK,
		"feilkode":    r.ErrorCode,
		"feilmelding": r.ErrorMessage,
	})
}

func statusOffset() int {
	off := 0
	for _, f := range receipt.Fields {
		if f.Name == "statusOk" {
			return off
		}
		off += f.Width
	}
	return off
}
