package udp_test

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/flukkyy/libcoap/message"
	"github.com/flukkyy/libcoap/message/codes"
	coapNet "github.com/flukkyy/libcoap/net"
	"github.com/flukkyy/libcoap/net/blockwise"
	"github.com/flukkyy/libcoap/options"
	"github.com/flukkyy/libcoap/udp"
	"github.com/flukkyy/libcoap/udp/client"
	"github.com/flukkyy/libcoap/udp/coder"
	"github.com/stretchr/testify/require"
)

// serveBlocks answers GET requests on conn with body split into szx sized
// blocks until ctx is done.
func serveBlocks(ctx context.Context, t *testing.T, conn *coapNet.UDPConn, body []byte, szx blockwise.SZX) {
	buf := make([]byte, 1500)
	for {
		n, from, err := conn.ReadWithContext(ctx, buf)
		if err != nil {
			return
		}
		var req message.Message
		if _, err = coder.DefaultCoder.Decode(buf[:n], &req); err != nil {
			t.Logf("cannot decode request: %v", err)
			continue
		}
		num := int64(0)
		if v, errB := req.Options.GetUint32(message.Block2); errB == nil {
			if _, num, _, errB = blockwise.DecodeBlockOption(v); errB != nil {
				t.Errorf("cannot decode block2: %v", errB)
				return
			}
		}
		start := num * szx.Size()
		end := start + szx.Size()
		more := end < int64(len(body))
		if !more {
			end = int64(len(body))
		}
		v, err := blockwise.EncodeBlockOption(szx, num, more)
		if err != nil {
			t.Errorf("cannot encode block2: %v", err)
			return
		}
		resp, err := coder.DefaultCoder.Marshal(message.Message{
			Type:      message.Acknowledgement,
			Code:      codes.Content,
			MessageID: req.MessageID,
			Token:     req.Token,
			Options:   message.Options{}.SetUint32(message.Block2, v),
			Payload:   body[start:end],
		})
		if err != nil {
			t.Errorf("cannot marshal response: %v", err)
			return
		}
		if err = conn.WriteWithContext(ctx, from, resp); err != nil {
			return
		}
	}
}

func TestDialBlockwiseGet(t *testing.T) {
	server, err := coapNet.NewListenUDP("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() {
		errC := server.Close()
		require.NoError(t, errC)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	body := bytes.Repeat([]byte("0123456789abcdef"), 20)
	done := make(chan struct{})
	go func() {
		defer close(done)
		serveBlocks(ctx, t, server, body, blockwise.SZX64)
	}()

	var sink bytes.Buffer
	target := "127.0.0.1:" + strconv.Itoa(server.LocalAddr().(*net.UDPAddr).Port)
	conn, err := udp.Dial(target, &sink, options.WithTransmission(time.Millisecond*200, 2, 0))
	require.NoError(t, err)
	defer func() {
		errC := conn.Close()
		require.NoError(t, errC)
	}()
	require.Equal(t, "udp4", conn.UDPConn().Network())
	require.Equal(t, server.LocalAddr().(*net.UDPAddr).Port, conn.RemoteAddr().Port)

	req, err := conn.NewRequest(client.Request{Method: codes.GET, URI: "coap://" + target + "/large"})
	require.NoError(t, err)
	require.NoError(t, conn.Run(ctx, req))
	require.Equal(t, body, sink.Bytes())

	cancel()
	<-done
}

func TestDialInvalidTarget(t *testing.T) {
	_, err := udp.Dial("no-port", nil)
	require.Error(t, err)
}

func TestDialLocalAddr(t *testing.T) {
	l, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := l.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, l.Close())

	local := "127.0.0.1:" + strconv.Itoa(port)
	conn, err := udp.Dial("127.0.0.1:5683", nil, options.WithLocalAddr(local))
	require.NoError(t, err)
	defer func() {
		errC := conn.Close()
		require.NoError(t, errC)
	}()
	require.Equal(t, port, conn.UDPConn().LocalAddr().(*net.UDPAddr).Port)
}
