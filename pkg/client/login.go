package client

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/shv-protocol/shv-go/pkg/wire"
)

// PasswordHash computes the login challenge response:
// hex(SHA1(nonce + hex(SHA1(password)))).
func PasswordHash(password, nonce string) string {
	inner := sha1.Sum([]byte(password))
	h := sha1.New()
	h.Write([]byte(nonce))
	h.Write([]byte(hex.EncodeToString(inner[:])))
	return hex.EncodeToString(h.Sum(nil))
}

// Login performs the hello/login handshake. params is not modified; a
// plaintext password is hashed on a copy when the broker offers a nonce.
func (c *Client) Login(ctx context.Context, params *ConnectionParams) error {
	hello, err := c.Call(ctx, c.NewRequest("", "hello", nil))
	if err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	c.logger.Debug("hello response", "result", hello.Result)

	p := *params
	if len(p.Password) != HashedPasswordLength {
		if m, ok := wire.AsMap(hello.Result); ok {
			if nonce, ok := wire.AsString(m["nonce"]); ok {
				p.Password = PasswordHash(p.Password, nonce)
				p.PasswordType = PasswordSHA1
			} else {
				c.logger.Warn("nonce param missing")
			}
		} else {
			c.logger.Warn("hello response params missing")
		}
	}

	resp, err := c.Call(ctx, c.NewRequest("", "login", p.LoginParams()))
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if !resp.HasResult() {
		reason := ""
		if resp.Error != nil {
			reason = resp.Error.Message
		}
		return &AuthError{Reason: reason}
	}

	c.logger.Debug("login result", "result", resp.Result)
	return nil
}
