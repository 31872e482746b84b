// Command milter-echo is an example milter that logs the callbacks it
// receives, adds an X-Milter-Echo header to every accepted message, and
// rejects messages whose envelope sender's local part contains "blocked".
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sendmilter/milter"
)

func main() {
	network := flag.String("network", "tcp", "listener network: tcp, tcp4, tcp6, or unix")
	addr := flag.String("addr", "127.0.0.1:9977", "listener address (path for unix)")
	flag.Parse()

	if *network == "unix" {
		_ = os.Remove(*addr)
	}
	ln, err := net.Listen(*network, *addr)
	if err != nil {
		log.Fatal(err)
	}
	defer ln.Close()

	factory := &milter.Factory{
		NewHandler: func() milter.Handler { return &echoHandler{} },
		Actions:    milter.OptAddHeader | milter.OptAddRcpt | milter.OptDelRcpt | milter.OptChangeHeader,
		Protocol:   milter.OptNoHelo,
	}
	server := milter.NewServer(factory)
	defer server.Close()

	go func() {
		if err := server.Serve(ln); err != nil && err != milter.ErrServerClosed {
			log.Println(err)
		}
	}()
	log.Printf("milter-echo listening on %s:%s", ln.Addr().Network(), ln.Addr().String())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Print("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Println(err)
	}
}
