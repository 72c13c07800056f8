package utils

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/spf13/viper"

	"github.com/datazip-inc/lakeplan/constants"
)

// encryptionKey resolves the active key from viper. An ARN selects AWS KMS,
// anything else derives a local AES-256-GCM key, empty disables encryption.
func encryptionKey() string {
	return strings.TrimSpace(viper.GetString(constants.EncryptionKey))
}

func isKMSKey(key string) bool {
	return strings.HasPrefix(key, "arn:aws:kms:")
}

// Encrypt protects a config payload with the configured key. Returns the
// input untouched when no key is set.
func Encrypt(data string) (string, error) {
	key := encryptionKey()
	if key == "" {
		return data, nil
	}

	if isKMSKey(key) {
		return kmsEncrypt(key, data)
	}

	// local mode derives the cipher key from the passphrase
	hash := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(hash[:])
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %s", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create gcm: %s", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %s", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(data), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt using the configured key. Returns the input
// untouched when no key is set.
func Decrypt(encryptedData string) (string, error) {
	key := encryptionKey()
	if key == "" {
		return encryptedData, nil
	}

	if isKMSKey(key) {
		return kmsDecrypt(key, encryptedData)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encryptedData))
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted data: %s", err)
	}

	hash := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(hash[:])
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %s", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create gcm: %s", err)
	}

	if len(ciphertext) < gcm.NonceSize() {
		return "", fmt.Errorf("invalid encrypted data: shorter than nonce")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt data: %s", err)
	}
	return string(plaintext), nil
}

func kmsEncrypt(keyARN, data string) (string, error) {
	client, err := kmsClient(keyARN)
	if err != nil {
		return "", err
	}

	result, err := client.Encrypt(context.Background(), &kms.EncryptInput{
		KeyId:     &keyARN,
		Plaintext: []byte(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encrypt with kms: %s", err)
	}
	return base64.StdEncoding.EncodeToString(result.CiphertextBlob), nil
}

func kmsDecrypt(keyARN, encryptedData string) (string, error) {
	client, err := kmsClient(keyARN)
	if err != nil {
		return "", err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encryptedData))
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted data: %s", err)
	}

	result, err := client.Decrypt(context.Background(), &kms.DecryptInput{
		CiphertextBlob: ciphertext,
		KeyId:          &keyARN,
	})
	if err != nil {
		return "", fmt.Errorf("failed to decrypt with kms: %s", err)
	}
	return string(result.Plaintext), nil
}

func kmsClient(keyARN string) (*kms.Client, error) {
	// arn:aws:kms:<region>:<account>:key/<id>
	parts := strings.Split(keyARN, ":")
	if len(parts) < 4 {
		return nil, fmt.Errorf("invalid kms arn: %s", keyARN)
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(parts[3]))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %s", err)
	}
	return kms.NewFromConfig(cfg), nil
}
