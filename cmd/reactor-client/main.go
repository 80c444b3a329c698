// Command reactor-client is a minimal driver demonstrating the reactor
// package end to end: connect, subscribe, publish on a timer, all pumped
// by a plain poll loop. Grounded on the teacher's cmd/mqtt-client/main.go
// (errgroup-orchestrated connect/subscribe/publish), generalized from the
// teacher's always-blocking Client to the non-blocking Reactor this repo
// builds, which the host must explicitly pump with Read/Write/Poll.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-io/reactor"
	"github.com/golang-io/reactor/packet"
	"github.com/golang-io/reactor/transport"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := reactor.New(
		reactor.Endpoint("127.0.0.1:1883"),
		reactor.ClientID("reactor-demo"),
		reactor.CleanSession(true),
		reactor.KeepalivePeriod(20*time.Second),
		reactor.WithSocketFactory(func(ctx context.Context, addr net.Addr) (reactor.Transport, error) {
			return transport.DialTCP(ctx, addr)
		}),
	)

	r.OnConnack(func(sessionPresent bool) {
		log.Printf("connected, session_present=%v", sessionPresent)
		if _, err := r.Subscribe(reactor.Subscription{TopicFilter: "+"}, reactor.Subscription{TopicFilter: "a/b/c"}); err != nil {
			log.Printf("subscribe failed: %v", err)
		}
	})
	r.OnPublish(func(msg *packet.Message, qos uint8) {
		log.Printf("recv topic=%s qos=%d payload=%s", msg.TopicName, qos, msg.Content)
	})
	r.OnConnectFail(func(err error) {
		log.Printf("connect failed: %v", err)
	})
	r.OnDisconnect(func(err error) {
		log.Printf("disconnected: %v", err)
	})

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return pumpLoop(ctx, r) })
	group.Go(func() error { return publishLoop(ctx, r) })
	group.Go(func() error { return waitForSignal(ctx, cancel) })

	if err := r.Start(ctx); err != nil {
		log.Fatalf("start: %v", err)
	}
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}

// pumpLoop drives the reactor the way a selector-backed event loop would,
// minus the selector: poll on a short tick, reading/writing whenever the
// reactor reports interest, and advancing the scheduler every tick.
func pumpLoop(ctx context.Context, r *reactor.Reactor) error {
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			r.Poll()
			if r.WantRead() {
				if err := r.Read(); err != nil {
					return err
				}
			}
			if r.WantWrite() {
				if err := r.Write(); err != nil {
					return err
				}
			}
		}
	}
}

func publishLoop(ctx context.Context, r *reactor.Reactor) error {
	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if r.State() == reactor.ReactorStarted {
				if _, err := r.Publish("reactor/demo", []byte(fmt.Sprintf("tick %s", time.Now().Format(time.RFC3339))), 1, false); err != nil {
					log.Printf("publish failed: %v", err)
				}
			}
			timer.Reset(2 * time.Second)
		}
	}
}

func waitForSignal(ctx context.Context, cancel context.CancelFunc) error {
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s := <-sig:
		return fmt.Errorf("got signal: %s", s)
	}
}
