package modem

import "encoding/xml"

// sesTokInfoResponse is the body of GET /api/webserver/SesTokInfo.
type sesTokInfoResponse struct {
	XMLName xml.Name `xml:"response"`
	SesInfo string   `xml:"SesInfo"`
	TokInfo string   `xml:"TokInfo"`
}

// sendRequest is the exact outbound SMS XML schema the modem expects.
type sendRequest struct {
	XMLName  xml.Name    `xml:"request"`
	Index    string      `xml:"Index"`
	Phones   sendPhones  `xml:"Phones"`
	Sca      string      `xml:"Sca"`
	Content  string      `xml:"Content"`
	Length   int         `xml:"Length"`
	Reserved string      `xml:"Reserved"`
	Date     string      `xml:"Date"`
}

type sendPhones struct {
	Phone string `xml:"Phone"`
}

// sendResponse carries the modem's assigned message id on success, or
// an application-level error code/message on failure. We parse an
// explicit numeric code when present rather than substring matching
// the message.
type sendResponse struct {
	XMLName   xml.Name `xml:"response"`
	MessageID string   `xml:"message_id"`
	Code      string   `xml:"code"`
	Message   string   `xml:"message"`
}

// listResponse is the body of the inbox listing call.
type listResponse struct {
	XMLName  xml.Name       `xml:"response"`
	Messages listMessageSet `xml:"messages"`
}

type listMessageSet struct {
	Messages []listMessage `xml:"message"`
}

type listMessage struct {
	Index   int    `xml:"index"`
	Phone   string `xml:"phone"`
	Content string `xml:"content"`
	Date    string `xml:"date"`
	Status  string `xml:"status"`
}

// statusResponse is the body of the status lookup call. Only the
// status field is required; other elements are ignored.
type statusResponse struct {
	XMLName xml.Name `xml:"response"`
	Status  string   `xml:"status"`
}

// healthResponse is the body of the health check call.
type healthResponse struct {
	XMLName          xml.Name `xml:"response"`
	SignalStrength   string   `xml:"signal_strength"`
	NetworkType      string   `xml:"network_type"`
	NetworkName      string   `xml:"network_name"`
	BatteryLevel     string   `xml:"battery_level"`
	ConnectionStatus string   `xml:"connection_status"`
}
