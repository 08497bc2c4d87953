// Package signature recovers and checks the signer of EIP-191 personal
// messages. It keeps no state and holds no secrets.
package signature

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"strings"

	"refledger/internal/config"
	"refledger/internal/models"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var log = config.InitLogger()

var ErrInvalidSignature = errors.New("invalid signature")

const signatureLength = crypto.SignatureLength

// RecoverSigner returns the address that produced signature over the
// personal-message hash of message.
func RecoverSigner(message, signature []byte) (common.Address, error) {
	if len(signature) != signatureLength {
		return common.Address{}, ErrInvalidSignature
	}

	sig := make([]byte, signatureLength)
	copy(sig, signature)
	// wallets emit v as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	v := sig[crypto.RecoveryIDOffset]
	r := new(big.Int).SetBytes(sig[:32])
	sv := new(big.Int).SetBytes(sig[32:64])
	// low s only, so every signer has one signature per message
	if !crypto.ValidateSignatureValues(v, r, sv, true) {
		return common.Address{}, ErrInvalidSignature
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}

	addr := crypto.PubkeyToAddress(*pub)
	if addr == (common.Address{}) {
		return common.Address{}, ErrInvalidSignature
	}
	return addr, nil
}

// DecodeSignature parses a 0x-prefixed hex signature.
func DecodeSignature(sig string) ([]byte, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(sig))
	if err != nil || len(raw) != signatureLength {
		return nil, ErrInvalidSignature
	}
	return raw, nil
}

// Verify checks that signature over message was made by claimed.
// Every failure, including a malformed signature, is SignatureRejected.
func Verify(message []byte, signature string, claimed string) error {
	raw, err := DecodeSignature(signature)
	if err != nil {
		return models.NewError(models.SignatureRejected, "malformed signature")
	}

	signer, err := RecoverSigner(message, raw)
	if err != nil {
		return models.NewError(models.SignatureRejected, "signature recovery failed")
	}

	if !strings.EqualFold(signer.Hex(), strings.TrimSpace(claimed)) {
		log.Warnf("Signature mismatch: claimed %s, recovered %s", claimed, signer.Hex())
		return models.NewError(models.SignatureRejected, "incorrect signature")
	}
	return nil
}

// ReplayKey names a signed intent regardless of how its signature is
// encoded: every valid signature by signer over message gives the same
// key. scope separates requests that carry the same message.
func ReplayKey(signer string, message []byte, scope ...string) string {
	parts := [][]byte{accounts.TextHash(message)}
	for _, s := range scope {
		parts = append(parts, []byte(s))
	}
	return strings.ToLower(strings.TrimSpace(signer)) + ":" + hex.EncodeToString(crypto.Keccak256(parts...))
}

type registerMessage struct {
	Action  string `json:"action"`
	Address string `json:"address"`
}

type drawingMessage struct {
	Action  string `json:"action"`
	Type    string `json:"type"`
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// RegisterMessage is the canonical registration intent:
// {"action":"register","address":"<account>"}
func RegisterMessage(account string) []byte {
	return canonical(registerMessage{Action: "register", Address: account})
}

// DrawingMessage is the canonical drawing intent:
// {"action":"drawing","type":"<channel>","address":"<account>","amount":"<amount>"}
func DrawingMessage(channel, account, amount string) []byte {
	return canonical(drawingMessage{Action: "drawing", Type: channel, Address: account, Amount: amount})
}

func canonical(v any) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// struct fields of string type always encode
	_ = enc.Encode(v)
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// IsAddress reports whether s is a 0x-prefixed 20 byte hex address.
func IsAddress(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// NormalizeAddress lower-cases a valid address for storage keys.
func NormalizeAddress(s string) (string, error) {
	if !IsAddress(s) {
		return "", models.NewError(models.InvalidRequest, "account is not a valid address")
	}
	return strings.ToLower(common.HexToAddress(strings.TrimSpace(s)).Hex()), nil
}
