// Command ringdemo runs one producer and one consumer against a small
// monitor-based ring buffer. The consumer starts first and the producer
// gets a head start of items 1..100, demonstrating blocking handoff
// end to end.
package main

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ringkit/ringbuffer"
)

const (
	capacity = 8
	items    = 100
)

func main() {
	buf, err := ringbuffer.NewMonitor[int](capacity)
	if err != nil {
		log.Fatalf("construct buffer: %v", err)
	}

	g, ctx := errgroup.WithContext(context.Background())

	// Consumer starts first and blocks on the empty buffer.
	g.Go(func() error {
		for i := 0; i < items; i++ {
			item, err := buf.Take(ctx)
			if err != nil {
				return err
			}
			log.Printf("the consumer received: %d", item)
		}
		return nil
	})

	time.Sleep(100 * time.Millisecond)

	g.Go(func() error {
		for i := 1; i <= items; i++ {
			if err := buf.Put(ctx, i); err != nil {
				return err
			}
			log.Printf("the producer added: %d", i)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("run: %v", err)
	}
	log.Println("the work is completed")
}
