package socket

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPActivePassiveFramedRoundTrip(t *testing.T) {
	ln, err := ListenTCPPassive(&net.TCPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer ln.Close()

	acceptedCh := make(chan Socket, 1)
	errCh := make(chan error, 1)
	go func() {
		s, err := ln.Accept()
		if err != nil {
			errCh <- err
			return
		}
		acceptedCh <- s
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := DialTCPActive(ctx, nil, ln.LocalAddr().(*net.TCPAddr))
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, KindTCPActive, client.Kind())

	var server Socket
	select {
	case server = <-acceptedCh:
	case err := <-errCh:
		t.Fatalf("accept failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
	defer server.Close()
	assert.Equal(t, KindTCPEstablished, server.Kind())

	_, err = client.WriteTo([]byte("framed payload"), nil)
	require.NoError(t, err)

	readCtx, readCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer readCancel()
	buf, _, err := server.ReadFrom(readCtx)
	require.NoError(t, err)
	assert.Equal(t, "framed payload", string(buf))
}

func TestTCPWriteRejectsOversizedFrame(t *testing.T) {
	ln, err := ListenTCPPassive(&net.TCPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := DialTCPActive(ctx, nil, ln.LocalAddr().(*net.TCPAddr))
	require.NoError(t, err)
	defer client.Close()

	oversized := make([]byte, maxFrameSize+1)
	_, err = client.WriteTo(oversized, nil)
	assert.Error(t, err)
}
