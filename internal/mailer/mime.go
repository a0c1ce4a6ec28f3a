package mailer

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// buildBody returns a MIME entity (Content-Type header, blank line, content).
// With an HTML part it is multipart/alternative, otherwise plain text.
func buildBody(text, html string) ([]byte, error) {
	text = normalizeNewlines(text)
	if html == "" {
		var b bytes.Buffer
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		b.WriteString("\r\n")
		b.WriteString(text)
		return b.Bytes(), nil
	}

	var parts bytes.Buffer
	w := multipart.NewWriter(&parts)

	if err := writeQuotedPart(w, "text/plain; charset=UTF-8", text); err != nil {
		return nil, err
	}
	if err := writeQuotedPart(w, "text/html; charset=UTF-8", html); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%s\r\n", w.Boundary())
	b.WriteString("\r\n")
	b.Write(parts.Bytes())
	return b.Bytes(), nil
}

func writeQuotedPart(w *multipart.Writer, contentType, content string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(content)); err != nil {
		return err
	}
	return qp.Close()
}

// encryptEntity wraps a MIME entity in a PGP/MIME envelope (RFC 3156).
func encryptEntity(entity []byte, to openpgp.EntityList) ([]byte, error) {
	if len(to) == 0 {
		return nil, fmt.Errorf("no public key for recipient")
	}

	encrypted, err := encryptArmored(entity, to)
	if err != nil {
		return nil, err
	}

	var parts bytes.Buffer
	envelope := multipart.NewWriter(&parts)

	versionHeader := textproto.MIMEHeader{}
	versionHeader.Set("Content-Type", "application/pgp-encrypted")
	versionPart, err := envelope.CreatePart(versionHeader)
	if err != nil {
		return nil, err
	}
	versionPart.Write([]byte("Version: 1\r\n"))

	encHeader := textproto.MIMEHeader{}
	encHeader.Set("Content-Type", "application/octet-stream; name=\"encrypted.asc\"")
	encHeader.Set("Content-Disposition", "inline; filename=\"encrypted.asc\"")
	encPart, err := envelope.CreatePart(encHeader)
	if err != nil {
		return nil, err
	}
	encPart.Write(encrypted)

	if err := envelope.Close(); err != nil {
		return nil, err
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "Content-Type: multipart/encrypted; protocol=\"application/pgp-encrypted\"; boundary=%s\r\n", envelope.Boundary())
	b.WriteString("\r\n")
	b.Write(parts.Bytes())
	return b.Bytes(), nil
}

func encryptArmored(plaintext []byte, to openpgp.EntityList) ([]byte, error) {
	var buf bytes.Buffer
	armorWriter, err := armor.Encode(&buf, "PGP MESSAGE", nil)
	if err != nil {
		return nil, fmt.Errorf("creating armor writer: %w", err)
	}

	encWriter, err := openpgp.Encrypt(armorWriter, to, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating encrypt writer: %w", err)
	}
	if _, err := encWriter.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing encrypted data: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return nil, err
	}
	if err := armorWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// keysFor picks the keyring entries whose identities match any recipient.
func keysFor(keys openpgp.EntityList, recipients []string) openpgp.EntityList {
	var out openpgp.EntityList
	for _, e := range keys {
		for _, id := range e.Identities {
			if id.UserId == nil {
				continue
			}
			if matchesAny(id.UserId.Email, recipients) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func matchesAny(email string, recipients []string) bool {
	for _, r := range recipients {
		if strings.EqualFold(email, r) {
			return true
		}
	}
	return false
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
