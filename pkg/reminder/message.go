package reminder

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"

	"github.com/aretw0/tickler/pkg/ports"
)

// Compose builds the MIME message carrying the invitation: a plain text part
// and the .ics file, both inline so mail clients render the RSVP controls.
func Compose(from, to string, r Reminder, invite string, date time.Time) (ports.Email, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	subject := "Reminder: " + r.Subject
	header := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"Date: " + date.Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q", mw.Boundary()),
	}
	head := strings.Join(header, "\r\n") + "\r\n\r\n"

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {`text/plain; charset="utf-8"`},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return ports.Email{}, err
	}
	if err := writeBase64(text, []byte(textBody(r))); err != nil {
		return ports.Email{}, err
	}

	cal, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {`text/calendar; charset="utf-8"; method=REQUEST; name="invite.ics"`},
		"Content-Disposition":       {`attachment; filename="invite.ics"`},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return ports.Email{}, err
	}
	if err := writeBase64(cal, []byte(invite)); err != nil {
		return ports.Email{}, err
	}

	if err := mw.Close(); err != nil {
		return ports.Email{}, err
	}

	return ports.Email{
		From:    from,
		To:      []string{to},
		Subject: subject,
		Raw:     append([]byte(head), buf.Bytes()...),
	}, nil
}

func textBody(r Reminder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", r.Subject)
	fmt.Fprintf(&b, "When: %s - %s\n", r.Start.Format("Mon 2 Jan 2006 15:04"), r.End.Format("15:04 MST"))
	b.WriteString(Description(r))
	b.WriteString("\n")
	return b.String()
}

// writeBase64 writes data base64 encoded in 76 character lines.
func writeBase64(w io.Writer, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		if _, err := w.Write([]byte(enc[:76] + "\r\n")); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err := w.Write([]byte(enc + "\r\n"))
	return err
}
