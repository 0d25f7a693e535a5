package notify

import (
	"bytes"
	"mime"
	"net/mail"
	"time"
)

// Message is a plaintext UTF-8 mail.
type Message struct {
	From    mail.Address
	To      mail.Address
	Subject string
	Body    string
}

// Bytes renders the message in RFC 5322 form with CRLF line endings.
func (m Message) Bytes() []byte {
	var b bytes.Buffer
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}
	header("From", m.From.String())
	header("To", m.To.String())
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("Date", time.Now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="UTF-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.Write(crlf(m.Body))
	return b.Bytes()
}

func crlf(s string) []byte {
	var b bytes.Buffer
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\r':
			continue
		case '\n':
			b.WriteString("\r\n")
		default:
			b.WriteByte(s[i])
		}
	}
	return b.Bytes()
}
