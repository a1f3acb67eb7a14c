package service

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const (
	transactionIDPrefix = "TXN-"
	ticketNumberPrefix  = "TKT-"
	// Generated numbers collide rarely; give up after this many fresh draws.
	maxNumberAttempts = 3
)

func newTransactionID() string {
	return transactionIDPrefix + randomHex(8)
}

func newTicketNumber() string {
	return ticketNumberPrefix + randomHex(6)
}

func randomHex(n int) string {
	b := make([]byte, n)
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(b)
	return strings.ToUpper(hex.EncodeToString(b))
}
