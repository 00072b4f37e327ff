package services

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"mentorjournal/internal/crypto"
	"mentorjournal/internal/models"
)

// EncryptionService converts entry content to its stored form. Without a
// key it stores plaintext, which is what development databases use.
type EncryptionService struct {
	crypto *crypto.Cipher
}

// NewEncryptionService takes the base64 ENCRYPTION_KEY value; an empty
// key disables encryption.
func NewEncryptionService(encodedKey string) (*EncryptionService, error) {
	if encodedKey == "" {
		return &EncryptionService{}, nil
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	c, err := crypto.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &EncryptionService{crypto: c}, nil
}

func (s *EncryptionService) Enabled() bool { return s.crypto != nil }

// EncodeEntry returns the stored forms of the responses, mood and summary.
func (s *EncryptionService) EncodeEntry(e models.JournalEntry) (string, *string, string, error) {
	responses := e.Responses
	if responses == nil {
		responses = []models.Response{}
	}
	raw, err := json.Marshal(responses)
	if err != nil {
		return "", nil, "", err
	}
	encResponses, err := s.encrypt(string(raw))
	if err != nil {
		return "", nil, "", err
	}

	var encMood *string
	if e.Mood != nil {
		m, err := s.encrypt(*e.Mood)
		if err != nil {
			return "", nil, "", err
		}
		encMood = &m
	}

	encSummary, err := s.encrypt(e.Summary)
	if err != nil {
		return "", nil, "", err
	}
	return encResponses, encMood, encSummary, nil
}

// DecodeEntry fills e's content fields from their stored forms.
func (s *EncryptionService) DecodeEntry(e *models.JournalEntry, responses string, mood *string, summary string) error {
	raw, err := s.decrypt(responses)
	if err != nil {
		return fmt.Errorf("responses: %w", err)
	}
	e.Responses = []models.Response{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &e.Responses); err != nil {
			return fmt.Errorf("responses: %w", err)
		}
	}

	e.Mood = nil
	if mood != nil {
		m, err := s.decrypt(*mood)
		if err != nil {
			return fmt.Errorf("mood: %w", err)
		}
		e.Mood = &m
	}

	e.Summary, err = s.decrypt(summary)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	return nil
}

func (s *EncryptionService) encrypt(v string) (string, error) {
	if s.crypto == nil {
		return v, nil
	}
	return s.crypto.Encrypt(v)
}

func (s *EncryptionService) decrypt(v string) (string, error) {
	if s.crypto == nil {
		return v, nil
	}
	return s.crypto.Decrypt(v)
}
