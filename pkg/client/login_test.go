package client

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shv-protocol/shv-go/pkg/wire"
)

func TestPasswordHashDeterministic(t *testing.T) {
	h1 := PasswordHash("secret", "1234")
	h2 := PasswordHash("secret", "1234")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, HashedPasswordLength)
	assert.Equal(t, strings.ToLower(h1), h1)

	assert.NotEqual(t, h1, PasswordHash("secret", "1235"))
	assert.NotEqual(t, h1, PasswordHash("Secret", "1234"))

	assert.Equal(t, "5ba361ed3aa47fa6e0122fd2e4940d39f964c568", h1)
	assert.Equal(t, "10a34637ad661d98ba3344717656fcc76209c2f8", PasswordHash("", ""))
}

func TestNewConnectionParams(t *testing.T) {
	p := NewConnectionParams("localhost", 3755, "admin", "admin!123")
	assert.Equal(t, PasswordPlain, p.PasswordType)
	assert.Equal(t, DefaultHeartbeatInterval, p.HeartbeatInterval)
	assert.Equal(t, wire.ProtocolCBOR, p.Protocol)

	hashed := NewConnectionParams("localhost", 3755, "admin", strings.Repeat("a", 40))
	assert.Equal(t, PasswordSHA1, hashed.PasswordType)

	dc := p.DialConfig()
	assert.Equal(t, "localhost:3755", dc.Address())
}

func TestLoginParams(t *testing.T) {
	tests := []struct {
		name       string
		deviceID   string
		mountPoint string
		heartbeat  time.Duration
		wantDevice map[string]any
		wantIdle   any
	}{
		{"device id wins", "dev-1", "test/agent", 60 * time.Second, map[string]any{"deviceId": "dev-1"}, int64(180)},
		{"mount point", "", "test/agent", 10 * time.Second, map[string]any{"mountPoint": "test/agent"}, int64(30)},
		{"neither", "", "", 0, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewConnectionParams("h", 0, "user", "pw")
			p.DeviceID = tt.deviceID
			p.MountPoint = tt.mountPoint
			p.HeartbeatInterval = tt.heartbeat

			lp := p.LoginParams()
			login := lp["login"].(map[string]any)
			assert.Equal(t, "user", login["user"])
			assert.Equal(t, "pw", login["password"])
			assert.Equal(t, "PLAIN", login["type"])

			options := lp["options"].(map[string]any)
			if tt.wantDevice == nil {
				assert.NotContains(t, options, "device")
			} else {
				assert.Equal(t, tt.wantDevice, options["device"])
			}
			if tt.wantIdle == nil {
				assert.NotContains(t, options, "idleWatchDogTimeOut")
			} else {
				assert.Equal(t, tt.wantIdle, options["idleWatchDogTimeOut"])
			}
		})
	}
}

func TestLoginWithNonce(t *testing.T) {
	c, b := startPair(t, Config{}, func(rq *wire.Message) *wire.Message {
		switch rq.Method {
		case "hello":
			return resultFor(rq, map[string]any{"nonce": "abc123"})
		case "login":
			return resultFor(rq, map[string]any{"clientId": int64(7)})
		}
		return nil
	})

	params := NewConnectionParams("h", 0, "alice", "secret")
	params.DeviceID = "dev-1"
	require.NoError(t, c.Login(context.Background(), params))

	// The caller's params are untouched.
	assert.Equal(t, "secret", params.Password)
	assert.Equal(t, PasswordPlain, params.PasswordType)

	reqs := b.received()
	require.Len(t, reqs, 2)
	assert.Equal(t, "hello", reqs[0].Method)
	assert.Nil(t, reqs[0].Params)
	assert.Equal(t, "login", reqs[1].Method)
	assert.Equal(t, "", reqs[1].Path)

	lp, ok := wire.AsMap(reqs[1].Params)
	require.True(t, ok)
	login, ok := wire.AsMap(lp["login"])
	require.True(t, ok)
	assert.Equal(t, PasswordHash("secret", "abc123"), login["password"])
	assert.Equal(t, "SHA1", login["type"])

	options, ok := wire.AsMap(lp["options"])
	require.True(t, ok)
	device, ok := wire.AsMap(options["device"])
	require.True(t, ok)
	assert.Equal(t, "dev-1", device["deviceId"])
	idle, ok := wire.AsInt(options["idleWatchDogTimeOut"])
	require.True(t, ok)
	assert.Equal(t, int64(180), idle)
}

func TestLoginWithoutNonce(t *testing.T) {
	c, b := startPair(t, Config{}, func(rq *wire.Message) *wire.Message {
		switch rq.Method {
		case "hello":
			return resultFor(rq, map[string]any{})
		case "login":
			return resultFor(rq, true)
		}
		return nil
	})

	require.NoError(t, c.Login(context.Background(), NewConnectionParams("h", 0, "alice", "secret")))

	reqs := b.received()
	require.Len(t, reqs, 2)
	lp, _ := wire.AsMap(reqs[1].Params)
	login, _ := wire.AsMap(lp["login"])
	assert.Equal(t, "secret", login["password"])
	assert.Equal(t, "PLAIN", login["type"])
}

func TestLoginKeepsHashedPassword(t *testing.T) {
	hashed := strings.Repeat("f", HashedPasswordLength)
	c, b := startPair(t, Config{}, func(rq *wire.Message) *wire.Message {
		if rq.Method == "hello" {
			return resultFor(rq, map[string]any{"nonce": "n"})
		}
		return resultFor(rq, true)
	})

	require.NoError(t, c.Login(context.Background(), NewConnectionParams("h", 0, "alice", hashed)))

	lp, _ := wire.AsMap(b.received()[1].Params)
	login, _ := wire.AsMap(lp["login"])
	assert.Equal(t, hashed, login["password"])
	assert.Equal(t, "SHA1", login["type"])
}

func TestLoginRejected(t *testing.T) {
	c, _ := startPair(t, Config{}, func(rq *wire.Message) *wire.Message {
		if rq.Method == "hello" {
			return resultFor(rq, map[string]any{"nonce": "n"})
		}
		return errorFor(rq, wire.CodeMethodCallException, "invalid login")
	})

	err := c.Login(context.Background(), NewConnectionParams("h", 0, "alice", "wrong"))
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr), "got %v", err)
	assert.Equal(t, "invalid login", authErr.Reason)
	assert.Contains(t, err.Error(), "login incorrect")
}

func TestLoginHelloTimeout(t *testing.T) {
	c, _ := startPair(t, Config{Timeout: 50 * time.Millisecond}, func(*wire.Message) *wire.Message { return nil })

	err := c.Login(context.Background(), NewConnectionParams("h", 0, "alice", "pw"))
	var timeoutErr *CallTimeoutError
	assert.True(t, errors.As(err, &timeoutErr), "got %v", err)
}
