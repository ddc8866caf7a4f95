package auth

import (
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/heavenlabs/voiceroom/internal/domain"
)

// RecoverSigner recovers the wallet that produced a personal_sign
// signature over message. Accepts both 0/1 and 27/28 recovery ids.
func RecoverSigner(message, signature string) (domain.Wallet, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return "", domain.ErrInvalidSignature
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", domain.ErrInvalidSignature
	}
	return domain.ParseWallet(crypto.PubkeyToAddress(*pub).Hex())
}
