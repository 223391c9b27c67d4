package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"time"

	"ms-booking/internal/models"

	"github.com/skip2/go-qrcode"
)

const imageSize = 256

var ErrInvalidTicket = errors.New("invalid ticket payload")

// TicketPayload is what the gate scanner recovers from a ticket QR code.
type TicketPayload struct {
	BookingID  string    `json:"bookingId"`
	UserID     string    `json:"userId"`
	MovieTitle string    `json:"movieTitle"`
	Amount     float64   `json:"amount"`
	IssuedAt   time.Time `json:"issuedAt"`
}

type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

// GenerateTicketQR renders the booking as a PNG QR code holding the sealed payload.
func (q *QRGenerator) GenerateTicketQR(booking models.Booking) ([]byte, error) {
	token, err := q.EncryptPayload(TicketPayload{
		BookingID:  booking.ID,
		UserID:     booking.UserID,
		MovieTitle: booking.MovieTitle,
		Amount:     booking.Amount,
		IssuedAt:   booking.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, imageSize)
}

// EncryptPayload seals the payload with AES-GCM and returns it URL-safe base64 encoded.
func (q *QRGenerator) EncryptPayload(p TicketPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	gcm, err := q.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// DecryptPayload reverses EncryptPayload. Tampered or foreign tokens fail with ErrInvalidTicket.
func (q *QRGenerator) DecryptPayload(token string) (*TicketPayload, error) {
	sealed, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidTicket
	}

	gcm, err := q.aead()
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, ErrInvalidTicket
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidTicket
	}

	var p TicketPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, ErrInvalidTicket
	}
	return &p, nil
}

func (q *QRGenerator) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(q.secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
