package main

import (
	"fmt"
	"log"
	"time"

	"github.com/GreatValueCreamSoda/gopool/pool"
)

// session stands in for something expensive to build and unsafe to share,
// like a parser with scratch buffers or a native library context.
type session struct {
	id      int
	created time.Time
}

func main() {
	built := 0
	connect := func() *session {
		built++
		time.Sleep(150 * time.Millisecond) // pretend this dials something
		return &session{id: built, created: time.Now()}
	}

	p, err := pool.New(connect, 1)
	if err != nil {
		panic(err)
	}

	fmt.Println("available before first use:", p.Available())

	item := p.Checkout()
	s := item.Get()
	fmt.Printf("checked out session %d, created %s\n", s.id,
		s.created.Format(time.Kitchen))
	item.ReturnToPool()

	err = p.With(func(b *pool.Borrowed[*session]) error {
		fmt.Printf("scoped checkout sees session %d again\n", b.Get().id)
		return nil
	})
	if err != nil {
		log.Fatal("scoped checkout failed:", err)
	}
	fmt.Println("sessions built so far:", built)

	// A second borrower blocks until the slot comes back.
	item = p.Checkout()
	done := make(chan struct{})
	go func() {
		defer close(done)
		inner := p.Checkout()
		fmt.Printf("waiter finally got session %d\n", inner.Get().id)
		inner.ReturnToPool()
	}()

	time.Sleep(300 * time.Millisecond)
	item.Discard() // pretend the session went bad while we held it
	item.ReturnToPool()
	<-done

	item = p.Checkout()
	fmt.Printf("after the discard the slot rebuilt session %d\n", item.Get().id)
	item.ReturnToPool()
}
