package notify

import (
	"encoding/json"
	"fmt"
	"net"
)

// xsNotification is the XSOverlay notification payload. Type 1 is a normal
// popup on the user's wrist.
type xsNotification struct {
	Type       int     `json:"type"`
	Timeout    float64 `json:"timeout"`
	Height     float64 `json:"height"`
	Opacity    float64 `json:"opacity"`
	Volume     float64 `json:"volume"`
	AudioPath  string  `json:"audioPath"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Icon       string  `json:"icon"`
	SourceApp  string  `json:"sourceApp"`
}

// xsObject is the outer command envelope XSOverlay expects on its UDP port.
type xsObject struct {
	Sender   string `json:"sender"`
	Target   string `json:"target"`
	Command  string `json:"command"`
	JSONData string `json:"jsonData"`
	RawData  string `json:"rawData"`
}

// Overlay sends notifications to a running XSOverlay instance over UDP.
// XSOverlay listens on localhost; if it isn't running the datagram is lost,
// which is fine.
type Overlay struct {
	addr string
}

func NewOverlay(host string, port int) *Overlay {
	return &Overlay{addr: fmt.Sprintf("%s:%d", host, port)}
}

func (o *Overlay) Notify(title, body string) error {
	payload, err := json.Marshal(xsNotification{
		Type:      1,
		Timeout:   3,
		Height:    110,
		Opacity:   1,
		Volume:    0.5,
		AudioPath: "default",
		Title:     title,
		Content:   body,
		Icon:      "default",
		SourceApp: "Spectre",
	})
	if err != nil {
		return err
	}

	msg, err := json.Marshal(xsObject{
		Sender:   "Spectre",
		Target:   "xsoverlay",
		Command:  "SendNotification",
		JSONData: string(payload),
	})
	if err != nil {
		return err
	}

	conn, err := net.Dial("udp", o.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Write(msg)
	return err
}
