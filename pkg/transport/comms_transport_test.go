package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/beacon-dapp/pkg/beacon"
	"github.com/morezero/beacon-dapp/pkg/commsutil"
)

const transportTestPrefix = "transport:comms_transport_test"

func startTestServer(t *testing.T, port int) (*commsserver.Server, func()) {
	t.Helper()

	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", transportTestPrefix, err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", transportTestPrefix)
	}
	return ns, func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	}
}

func TestCommsTransport_SendBeforeConnect(t *testing.T) {
	tr := NewCommsTransport(CommsTransportOpts{})
	err := tr.Send(context.Background(), []byte("x"))
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("%s - err = %v, want ErrNotConnected", transportTestPrefix, err)
	}
	if err := tr.Connect(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("%s - Connect before Init err = %v, want ErrNotConnected", transportTestPrefix, err)
	}
}

func TestCommsTransport_InitFailure(t *testing.T) {
	tr := NewCommsTransport(CommsTransportOpts{URL: "invalid://not-a-nats-server"})
	if err := tr.Init(context.Background()); err == nil {
		t.Errorf("%s - expected Init to fail", transportTestPrefix)
	}
}

func TestCommsTransport_RoundTrip(t *testing.T) {
	ns, cleanup := startTestServer(t, 14250)
	defer cleanup()
	ctx := context.Background()

	tr := NewCommsTransport(CommsTransportOpts{
		URL:             ns.ClientURL(),
		Name:            "dapp-test",
		RequestSubject:  "test.wallet.requests",
		ResponseSubject: "test.dapp.responses",
	})
	defer tr.Close()

	type delivery struct {
		data []byte
		cc   beacon.ConnectionContext
	}
	got := make(chan delivery, 1)
	tr.SetHandler(func(_ context.Context, data []byte, cc beacon.ConnectionContext) {
		got <- delivery{data: data, cc: cc}
	})

	for i := 0; i < 2; i++ {
		if err := tr.Init(ctx); err != nil {
			t.Fatalf("%s - Init failed: %v", transportTestPrefix, err)
		}
		if err := tr.Connect(ctx); err != nil {
			t.Fatalf("%s - Connect failed: %v", transportTestPrefix, err)
		}
	}

	wallet, err := comms.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("%s - wallet connect failed: %v", transportTestPrefix, err)
	}
	defer wallet.Close()
	sub, err := wallet.Subscribe("test.wallet.requests", func(msg *comms.Msg) {
		reply := comms.NewMsg(msg.Reply)
		reply.Header.Set(commsutil.HeaderOrigin, string(beacon.OriginExtension))
		reply.Header.Set(commsutil.HeaderPeer, "wallet-42")
		reply.Data = append([]byte("ack:"), msg.Data...)
		wallet.PublishMsg(reply)
	})
	if err != nil {
		t.Fatalf("%s - wallet subscribe failed: %v", transportTestPrefix, err)
	}
	defer sub.Unsubscribe()
	wallet.Flush()

	if err := tr.Send(ctx, []byte("hello")); err != nil {
		t.Fatalf("%s - Send failed: %v", transportTestPrefix, err)
	}

	select {
	case d := <-got:
		if string(d.data) != "ack:hello" {
			t.Errorf("%s - data = %q, want %q", transportTestPrefix, d.data, "ack:hello")
		}
		want := beacon.ConnectionContext{Origin: beacon.OriginExtension, ID: "wallet-42"}
		if d.cc != want {
			t.Errorf("%s - cc = %+v, want %+v", transportTestPrefix, d.cc, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - timeout waiting for response", transportTestPrefix)
	}
}

func TestConnectionContext_Defaults(t *testing.T) {
	cc := connectionContext(&comms.Msg{Subject: "beacon.dapp.responses"})
	if cc.Origin != beacon.OriginP2P || cc.ID != "beacon.dapp.responses" {
		t.Errorf("%s - cc = %+v", transportTestPrefix, cc)
	}
}
