package pass

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

	"ms-leadflow/internal/models"

	"github.com/skip2/go-qrcode"
)

// Generator produces encrypted admission-pass QR codes for paid workshop
// orders. The payload is AES-encrypted so a scanned pass can only be decoded
// by the check-in desk holding the same secret.
type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

type admissionPass struct {
	OrderID    string    `json:"order_id"`
	LeadID     string    `json:"lead_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	WorkshopID string    `json:"workshop_id"`
	IssuedAt   time.Time `json:"issued_at"`
}

func (g *Generator) GenerateAdmissionPass(lead *models.Lead, order *models.Order) ([]byte, error) {
	encrypted, err := g.EncryptedPayload(lead, order)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

// EncryptedPayload builds and encrypts the pass payload without rendering
// the QR image.
func (g *Generator) EncryptedPayload(lead *models.Lead, order *models.Order) (string, error) {
	data, err := json.Marshal(admissionPass{
		OrderID:    order.ID,
		LeadID:     lead.ID,
		Email:      lead.Email,
		Name:       lead.Name,
		WorkshopID: order.WorkshopID,
		IssuedAt:   time.Now(),
	})
	if err != nil {
		return "", err
	}
	return encryptAES(data, g.secret)
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptPass decodes a scanned pass payload back into its JSON form. Used
// by the check-in tooling and by tests.
func DecryptPass(encoded string, secret string) ([]byte, error) {
	hashed := sha256.Sum256([]byte(secret))
	key := hashed[:]

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < aes.BlockSize {
		return nil, errors.New("pass payload is too short")
	}
	iv := ciphertext[:aes.BlockSize]
	data := ciphertext[aes.BlockSize:]

	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(data, data)

	return data, nil
}
