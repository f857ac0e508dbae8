// Command rdt-send is the Sender CLI: it dials a Receiver, runs the
// handshake, frames the configured payload across the negotiated window,
// and tears the session down gracefully.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
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
	"reliant/internal/rdtlog"
	"reliant/internal/sender"
	"reliant/internal/transport"
)

type sendFlags struct {
	configPath  string
	target      string
	window      int
	msgSize     int
	timeout     int
	dynamic     bool
	interactive bool
	demoDropSeq int
}

func main() {
	flags := &sendFlags{}
	root := &cobra.Command{
		Use:   "rdt-send",
		Short: "Send a payload to an rdt-recv listener over a reliable transfer session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags)
		},
	}
	root.Flags().StringVar(&flags.configPath, "config", "config.yaml", "path to the session config file")
	root.Flags().StringVar(&flags.target, "target", "127.0.0.1:9000", "receiver address, host:port")
	root.Flags().IntVar(&flags.window, "window", 0, "override window_size (0: use config)")
	root.Flags().IntVar(&flags.msgSize, "msg-size", 0, "override maximum_msg_size (0: use config)")
	root.Flags().IntVar(&flags.timeout, "timeout", 0, "override timeout in ms (0: use config)")
	root.Flags().BoolVar(&flags.dynamic, "dynamic", false, "override dynamic_size to true")
	root.Flags().BoolVar(&flags.interactive, "interactive", false, "prompt on stdin for the four proposal values and the message file, and save them to --config")
	root.Flags().IntVar(&flags.demoDropSeq, "demo-drop-seq", -1, "test/demo only: silently drop one outbound segment at this sequence number")

	ctx := dcontext.WithSoftness(dcontext.HardContext(context.Background()))
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, flags *sendFlags) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = derror.PanicToError(r)
		}
	}()

	fs := config.NewOsFs()
	var file config.File
	if flags.interactive {
		file, err = promptForConfig(os.Stdin)
		if err != nil {
			return errors.Wrap(err, "rdt-send: interactive config")
		}
		if err := config.Write(fs, flags.configPath, file); err != nil {
			return errors.Wrap(err, "rdt-send: save interactive config")
		}
	} else {
		file, err = config.Load(ctx, fs, flags.configPath)
		if err != nil {
			return errors.Wrap(err, "rdt-send: load config")
		}
	}
	applyOverrides(&file, flags)

	payload, err := config.PayloadSource(fs, file)
	if err != nil {
		return errors.Wrap(err, "rdt-send: payload source")
	}

	ctx, sid := rdtlog.WithSession(ctx)
	reg := prometheus.NewRegistry()
	senderMetrics := metrics.NewSender(reg)

	grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
		SoftShutdownTimeout:  5 * time.Second,
		EnableSignalHandling: true,
		ShutdownOnNonError:   true,
	})
	grp.Go("sender", func(ctx context.Context) error {
		dlog.Infof(ctx, "SESS %s dialing %s", sid, flags.target)
		conn, err := net.Dial("tcp", flags.target)
		if err != nil {
			return errors.Wrapf(err, "rdt-send: dial %s", flags.target)
		}
		ch := transport.NewConn(conn)

		local := file.Params()
		effective, residue, err := sender.Handshake(ctx, ch, local)
		if err != nil {
			_ = ch.Close()
			return errors.Wrap(err, "rdt-send: handshake")
		}

		opts := []sender.Option{sender.WithMetrics(senderMetrics), sender.WithInitialBuffer(residue)}
		if flags.demoDropSeq >= 0 {
			opts = append(opts, sender.WithDropSequence(flags.demoDropSeq))
		}
		f := sender.NewFramer(ch, payload, effective, opts...)
		if err := f.Run(ctx); err != nil {
			_ = ch.Close()
			return errors.Wrap(err, "rdt-send: frame transfer")
		}

		if err := sender.Teardown(ctx, ch, nil); err != nil {
			return errors.Wrap(err, "rdt-send: teardown")
		}
		fmt.Printf("rdt-send: delivered %d bytes in %d segments\n", len(payload), f.SegmentCount())
		return nil
	})

	return grp.Wait()
}

func applyOverrides(f *config.File, flags *sendFlags) {
	if flags.window > 0 {
		f.WindowSize = flags.window
	}
	if flags.msgSize > 0 {
		f.MaximumMsgSize = flags.msgSize
	}
	if flags.timeout > 0 {
		f.Timeout = flags.timeout
	}
	if flags.dynamic {
		f.DynamicSize = true
	}
}

// promptForConfig reimplements the reference client's interactive menu
// (Utils/config_writer.py): ask for window size, max message size, timeout,
// the dynamic-size flag, and the message file, one per line.
func promptForConfig(in *os.File) (config.File, error) {
	reader := bufio.NewReader(in)
	var f config.File

	readInt := func(prompt string) (int, error) {
		fmt.Print(prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0, err
		}
		var v int
		if _, err := fmt.Sscanf(strings.TrimSpace(line), "%d", &v); err != nil {
			return 0, errors.Wrapf(err, "parse %q as an integer", line)
		}
		return v, nil
	}

	var err error
	if f.WindowSize, err = readInt("window size: "); err != nil {
		return config.File{}, err
	}
	if f.MaximumMsgSize, err = readInt("maximum message size: "); err != nil {
		return config.File{}, err
	}
	if f.Timeout, err = readInt("timeout (ms): "); err != nil {
		return config.File{}, err
	}
	fmt.Print("dynamic size (true/false): ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return config.File{}, err
	}
	f.DynamicSize = strings.EqualFold(strings.TrimSpace(line), "true")

	fmt.Print("message file: ")
	line, err = reader.ReadString('\n')
	if err != nil {
		return config.File{}, err
	}
	f.MessageFile = strings.TrimSpace(line)

	return f, nil
}
