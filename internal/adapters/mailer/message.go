package mailer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

const base64LineLength = 76

// Attachment is a file carried by a device delivery
type Attachment struct {
	Filename string
	Content  []byte
}

// Envelope holds the header values of a delivery message
type Envelope struct {
	From    string
	To      string
	Subject string
	Date    time.Time
}

// buildMessage composes a multipart/mixed message with the attachment as
// its only part
func buildMessage(env Envelope, att Attachment) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", env.From)
	fmt.Fprintf(&buf, "To: %s\r\n", env.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", env.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", env.Date.Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@%s>\r\n", uuid.NewString(), messageDomain(env.From))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")

	writer := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	attHeader := make(textproto.MIMEHeader)
	attHeader.Set("Content-Type", "application/octet-stream")
	attHeader.Set("Content-Transfer-Encoding", "base64")
	attHeader.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": att.Filename,
	}))

	part, err := writer.CreatePart(attHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment part: %w", err)
	}
	if _, err := part.Write(encodeBase64WithLineBreaks(att.Content)); err != nil {
		return nil, fmt.Errorf("failed to write attachment part: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeBase64WithLineBreaks encodes data as base64 in 76 character lines
func encodeBase64WithLineBreaks(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)

	var out bytes.Buffer
	out.Grow(len(encoded) + 2*(len(encoded)/base64LineLength+1))
	for i := 0; i < len(encoded); i += base64LineLength {
		end := min(i+base64LineLength, len(encoded))
		if i > 0 {
			out.WriteString("\r\n")
		}
		out.WriteString(encoded[i:end])
	}
	return out.Bytes()
}

// messageDomain returns the domain of addr, used for the Message-ID
func messageDomain(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return "localhost"
	}
	return addr[at+1:]
}
