// Package main serves the current directory over HTTP/1.0 on 127.0.0.1.
//
// Usage:
//
//	simplehttp [port]
//
// The port defaults to 8000. Port 0 lets the operating system pick one; the
// startup line on stdout reports the port actually bound.
package main

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/f4ah6o/simplehttp-go/internal/config"
	"github.com/f4ah6o/simplehttp-go/internal/handler"
	"github.com/f4ah6o/simplehttp-go/internal/mimetype"
	"github.com/f4ah6o/simplehttp-go/internal/server"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("simplehttp: ")

	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

// run resolves the configuration, binds the socket, announces it on stdout and
// serves until the listener fails. It only returns on error.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.FromArgs(args)
	if err != nil {
		return err
	}

	h := handler.New(cfg, mimetype.Default(), handler.NewAccessLog(stderr))
	srv, err := server.Listen(ctx, cfg, h)
	if err != nil {
		return err
	}
	srv.ErrorLog = log.New(stderr, "", 0)

	if err := srv.Announce(stdout); err != nil {
		srv.Close()
		return err
	}
	return srv.Serve()
}
