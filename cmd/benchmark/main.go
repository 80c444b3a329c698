// Command benchmark drives maxConn concurrent reactor sessions against a
// broker, each pumped by its own goroutine's poll loop, for comparison
// against cmd/paho-benchmark under the same load. Grounded on the
// teacher's cmd/benchmark/main.go loop shape (a fixed pool of
// goroutines, one connection each), generalized from paho's blocking
// client to this repo's Reactor plus a manual pump loop per connection
// (one OS thread per reactor is affordable at this fleet size; a
// production host would instead share one selector across all of them).
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/golang-io/reactor"
	"github.com/golang-io/reactor/transport"
)

var maxConn = 100

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	group := sync.WaitGroup{}
	for i := 0; i < maxConn; i++ {
		i := i
		group.Add(1)
		go func() {
			defer group.Done()
			reactorStart(i)
		}()
	}
	group.Wait()
}

func reactorStart(i int) {
	ctx := context.Background()
	r := reactor.New(
		reactor.Endpoint("127.0.0.1:1883"),
		reactor.ClientID(fmt.Sprintf("bench-%02d", i)),
		reactor.CleanSession(true),
		reactor.WithSocketFactory(func(ctx context.Context, addr net.Addr) (reactor.Transport, error) {
			return transport.DialTCP(ctx, addr)
		}),
	)
	r.OnConnack(func(bool) {
		if _, err := r.Subscribe(reactor.Subscription{TopicFilter: "+"}); err != nil {
			log.Printf("[%d] subscribe: %v", i, err)
		}
	})

	if err := r.Start(ctx); err != nil {
		log.Printf("[%d] start: %v", i, err)
		return
	}

	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	publishTick := time.NewTicker(time.Second)
	defer publishTick.Stop()

	for {
		select {
		case <-publishTick.C:
			if r.State() == reactor.ReactorStarted {
				topic := fmt.Sprintf("topic_%02d", i)
				if _, err := r.Publish(topic, []byte(fmt.Sprintf("reactor:test-%02d", i)), 0, false); err != nil {
					log.Printf("[%d] publish: %v", i, err)
				}
			}
		case <-tick.C:
			r.Poll()
			if r.WantRead() {
				if err := r.Read(); err != nil {
					log.Printf("[%d] read: %v", i, err)
					return
				}
			}
			if r.WantWrite() {
				if err := r.Write(); err != nil {
					log.Printf("[%d] write: %v", i, err)
					return
				}
			}
		}
	}
}
