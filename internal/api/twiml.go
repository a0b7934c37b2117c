package api

import (
	"encoding/xml"
	"fmt"
)

// twimlResponse is the TwiML envelope Twilio expects from a webhook. Each
// Message element becomes a separate WhatsApp message.
type twimlResponse struct {
	XMLName  xml.Name       `xml:"Response"`
	Messages []twimlMessage `xml:"Message"`
}

type twimlMessage struct {
	Body string `xml:"Body"`
}

// EncodeTwiML renders the reply list as a TwiML document. Blank replies are
// dropped; an empty list yields a well-formed empty Response.
func EncodeTwiML(replies []string) ([]byte, error) {
	var resp twimlResponse
	for _, r := range replies {
		if r == "" {
			continue
		}
		resp.Messages = append(resp.Messages, twimlMessage{Body: r})
	}

	body, err := xml.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode TwiML: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
