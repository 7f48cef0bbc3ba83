// FILE: haystackauth/src/internal/scram/scram.go
package scram

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"haystackauth/src/internal/core"
)

var (
	ErrNonceMismatch     = errors.New("server nonce does not extend client nonce")
	ErrInvalidState      = errors.New("invalid handshake state")
	ErrSignatureMismatch = errors.New("server signature mismatch")
)

// Exchange holds the client side of one SCRAM conversation with no
// channel binding.
type Exchange struct {
	alg      *Algorithm
	username string

	// Handshake state
	clientNonce     string
	clientFirstBare string
	serverFirst     *ServerFirst
	authMessage     string
	saltedPassword  []byte
}

// NewExchange starts a conversation for username using a caller-supplied
// client nonce.
func NewExchange(alg *Algorithm, username, clientNonce string) *Exchange {
	return &Exchange{
		alg:             alg,
		username:        username,
		clientNonce:     clientNonce,
		clientFirstBare: "n=" + encodeName(username) + ",r=" + clientNonce,
	}
}

// ClientFirst returns gs2-header + client-first-message-bare.
func (e *Exchange) ClientFirst() string {
	return core.GS2Header + e.clientFirstBare
}

// ClientFinal consumes the server-first-message and returns the
// client-final-message including the proof.
func (e *Exchange) ClientFinal(serverFirst string, password []byte) (string, error) {
	sf, err := ParseServerFirst(serverFirst)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(sf.FullNonce, e.clientNonce) || len(sf.FullNonce) == len(e.clientNonce) {
		return "", ErrNonceMismatch
	}
	e.serverFirst = sf

	channelBinding := "c=" + base64.StdEncoding.EncodeToString([]byte(core.GS2Header))
	clientFinalNoProof := channelBinding + ",r=" + sf.FullNonce

	e.saltedPassword = e.alg.SaltedPassword(password, sf.Salt, sf.Iterations)
	clientKey := e.alg.HMAC(e.saltedPassword, []byte("Client Key"))
	storedKey := e.alg.Hash(clientKey)

	e.authMessage = e.clientFirstBare + "," + sf.Raw + "," + clientFinalNoProof

	clientSignature := e.alg.HMAC(storedKey, []byte(e.authMessage))
	proof := XOR(clientKey, clientSignature)
	zero(clientKey)

	return clientFinalNoProof + ",p=" + base64.StdEncoding.EncodeToString(proof), nil
}

// VerifyServerFinal checks a server signature, given either as a bare
// base64 value or as a full "v=..." server-final-message.
func (e *Exchange) VerifyServerFinal(msg string) error {
	if e.authMessage == "" || e.saltedPassword == nil {
		return ErrInvalidState
	}

	sig := msg
	if strings.HasPrefix(msg, "v=") || strings.HasPrefix(msg, "e=") {
		attrs := parseAttributes(msg)
		if serverErr, ok := attrs["e"]; ok {
			return fmt.Errorf("server reported error: %s", serverErr)
		}
		sig = attrs["v"]
	}

	receivedSig, err := DecodeData(sig)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}

	serverKey := e.alg.HMAC(e.saltedPassword, []byte("Server Key"))
	expectedSig := e.alg.HMAC(serverKey, []byte(e.authMessage))

	if subtle.ConstantTimeCompare(expectedSig, receivedSig) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}

// Clear wipes key material held by the exchange.
func (e *Exchange) Clear() {
	zero(e.saltedPassword)
	e.saltedPassword = nil
	e.authMessage = ""
	e.serverFirst = nil
}
