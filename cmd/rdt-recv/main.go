// Command rdt-recv is the Receiver CLI: it listens for one Sender
// connection at a time, runs the handshake/reassembly/teardown responder
// side, and prints the delivered payload.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/datawire/dlib/dcontext"
	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"reliant/internal/config"
	"reliant/internal/metrics"
	"reliant/internal/negotiate"
	"reliant/internal/rdtlog"
	"reliant/internal/receiver"
	"reliant/internal/transport"
)

type recvFlags struct {
	bind       string
	configPath string
}

func main() {
	flags := &recvFlags{}
	root := &cobra.Command{
		Use:   "rdt-recv",
		Short: "Accept rdt-send sessions and reassemble the transferred payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags)
		},
	}
	root.Flags().StringVar(&flags.bind, "bind", "127.0.0.1:9000", "address to listen on, host:port")
	root.Flags().StringVar(&flags.configPath, "config", "", "optional server-side proposed config (empty: echo the client's SYN)")

	ctx := dcontext.WithSoftness(dcontext.HardContext(context.Background()))
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, flags *recvFlags) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = derror.PanicToError(r)
		}
	}()

	var local negotiate.Params
	if flags.configPath != "" {
		fs := config.NewOsFs()
		file, err := config.Load(ctx, fs, flags.configPath)
		if err != nil {
			return errors.Wrap(err, "rdt-recv: load config")
		}
		local = file.Params()
	}

	ln, err := net.Listen("tcp", flags.bind)
	if err != nil {
		return errors.Wrapf(err, "rdt-recv: listen %s", flags.bind)
	}
	defer ln.Close()

	reg := prometheus.NewRegistry()
	recvMetrics := metrics.NewReceiver(reg)

	grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
		SoftShutdownTimeout:  5 * time.Second,
		EnableSignalHandling: true,
		ShutdownOnNonError:   true,
	})
	grp.Go("listener", func(ctx context.Context) error {
		return acceptLoop(ctx, ln, local, recvMetrics)
	})

	return grp.Wait()
}

func acceptLoop(ctx context.Context, ln net.Listener, local negotiate.Params, recvMetrics *metrics.Receiver) error {
	for {
		conn, err := acceptWithContext(ctx, ln)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return errors.Wrap(err, "rdt-recv: accept")
		}
		go handleSession(ctx, conn, local, recvMetrics)
	}
}

func acceptWithContext(ctx context.Context, ln net.Listener) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	out := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		out <- result{conn, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-out:
		return r.conn, r.err
	}
}

func handleSession(parent context.Context, conn net.Conn, local negotiate.Params, recvMetrics *metrics.Receiver) {
	ctx, sid := rdtlog.WithSession(parent)
	defer func() {
		if r := recover(); r != nil {
			dlog.Errorf(ctx, "SESS %s panic: %+v", sid, derror.PanicToError(r))
		}
	}()

	ch := transport.NewConn(conn)
	r := receiver.NewReassembler(local, receiver.WithMetrics(recvMetrics))

	residue, err := receiver.Serve(ctx, ch, r)
	if err != nil {
		dlog.Errorf(ctx, "SESS %s serve: %+v", sid, err)
		_ = ch.Close()
		return
	}
	if err := receiver.AwaitTeardown(ctx, ch, residue); err != nil {
		dlog.Errorf(ctx, "SESS %s teardown: %+v", sid, err)
		return
	}
	dlog.Infof(ctx, "SESS %s delivered %d bytes", sid, len(r.Delivered()))
	fmt.Printf("rdt-recv: delivered %q\n", r.Delivered())
}
