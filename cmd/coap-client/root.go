package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/flukkyy/libcoap/message"
	"github.com/flukkyy/libcoap/options"
	"github.com/flukkyy/libcoap/options/config"
	"github.com/flukkyy/libcoap/udp"
	"github.com/flukkyy/libcoap/udp/client"
	"github.com/spf13/cobra"
)

type flags struct {
	method         string
	blockSize      string
	contentFormat  string
	accept         []string
	subscribe      time.Duration
	proxy          string
	token          string
	payloadFile    string
	payload        string
	group          string
	output         string
	configFile     string
	nonConfirmable bool
	verbose        bool
	maxMessageSize string
	ackTimeout     time.Duration
	maxRetransmit  uint32
	randomFactor   float64
	port           uint16
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "coap-client [flags] URI",
		Short: "Send a CoAP request over UDP",
		Long: `coap-client sends one request to the coap:// URI and writes the body of the
response to stdout. Large responses are fetched block-wise, confirmable
requests are retransmitted with exponential backoff.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.configFile != "" {
				file, err := config.Load(f.configFile)
				if err != nil {
					return err
				}
				f.merge(cmd.Flags().Changed, file)
			}
			out := cmd.OutOrStdout()
			if f.output != "" && f.output != "-" {
				file, err := os.Create(f.output)
				if err != nil {
					return fmt.Errorf("cannot create output: %w", err)
				}
				defer file.Close()
				out = file
			}
			return run(cmd.Context(), &f, args[0], cmd.InOrStdin(), out)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.method, "method", "m", "get", "request method: get, post, put, delete, fetch, patch, ipatch")
	fl.StringVarP(&f.blockSize, "block-size", "b", "", "proposed response block size, a power of two from 16 to 1024")
	fl.StringVarP(&f.contentFormat, "content-format", "t", "", "content format of the payload, a name like json or a number")
	fl.StringSliceVarP(&f.accept, "accept", "A", nil, "accepted content formats, comma separated")
	fl.DurationVarP(&f.subscribe, "subscribe", "s", 0, "observe the resource for the duration")
	fl.StringVarP(&f.proxy, "proxy", "P", "", "forward proxy address host:port")
	fl.StringVarP(&f.token, "token", "T", "", "request token, up to 8 bytes")
	fl.StringVarP(&f.payloadFile, "payload-file", "f", "", "file with the request payload, - reads stdin")
	fl.StringVarP(&f.payload, "payload", "e", "", "request payload")
	fl.Uint16VarP(&f.port, "port", "p", 0, "local port to listen on, 0 picks any")
	fl.StringVarP(&f.group, "group", "g", "", "join the multicast group before sending")
	fl.StringVarP(&f.output, "output", "o", "", "write the response body to the file")
	fl.StringVarP(&f.configFile, "config", "c", "", "YAML configuration file")
	fl.BoolVarP(&f.nonConfirmable, "non-confirmable", "N", false, "send a non-confirmable request")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "log dropped messages and send errors")
	fl.StringVar(&f.maxMessageSize, "max-message-size", "", "largest datagram, for example 1152 or 64KiB")
	fl.DurationVar(&f.ackTimeout, "ack-timeout", client.DefaultConfig.TransmissionAcknowledgeTimeout, "initial retransmission timeout")
	fl.Uint32Var(&f.maxRetransmit, "max-retransmit", client.DefaultConfig.TransmissionMaxRetransmit, "number of retransmissions of a confirmable message")
	fl.Float64Var(&f.randomFactor, "random-factor", client.DefaultConfig.TransmissionRandomFactor, "jitter of the retransmission timeout")
	return cmd
}

// merge fills the flags which were not set on the command line from file.
func (f *flags) merge(changed func(name string) bool, file config.File) {
	if !changed("block-size") && file.BlockSize != "" {
		f.blockSize = file.BlockSize
	}
	if !changed("max-message-size") && file.MaxMessageSize != "" {
		f.maxMessageSize = file.MaxMessageSize
	}
	if !changed("ack-timeout") && file.AcknowledgeTimeout > 0 {
		f.ackTimeout = file.AcknowledgeTimeout
	}
	if !changed("max-retransmit") && file.MaxRetransmit != nil {
		f.maxRetransmit = *file.MaxRetransmit
	}
	if !changed("random-factor") && file.RandomFactor != nil {
		f.randomFactor = *file.RandomFactor
	}
	if !changed("subscribe") && file.ObserveLifetime > 0 {
		f.subscribe = file.ObserveLifetime
	}
	if !changed("proxy") && file.Proxy != "" {
		f.proxy = file.Proxy
	}
	if !changed("accept") && len(file.Accept) > 0 {
		f.accept = file.Accept
	}
	if !changed("content-format") && file.ContentFormat != "" {
		f.contentFormat = file.ContentFormat
	}
}

func (f *flags) clientOptions() ([]client.Option, error) {
	opts := []client.Option{
		options.WithErrors(func(err error) {
			if f.verbose {
				log.Print(err)
			}
		}),
		options.WithObserveLifetime(f.subscribe),
		options.WithProxy(f.proxy),
		options.WithTransmission(f.ackTimeout, f.maxRetransmit, f.randomFactor),
	}
	if f.port != 0 {
		opts = append(opts, options.WithLocalAddr(":"+strconv.Itoa(int(f.port))))
	}
	if f.maxMessageSize != "" {
		size, err := config.ParseSize(f.maxMessageSize, maxDatagramSize)
		if err != nil {
			return nil, err
		}
		opts = append(opts, options.WithMaxMessageSize(size))
	}
	return opts, nil
}

// target is the address requests are sent to, the proxy when one is set.
func (f *flags) target(uri string) (string, error) {
	if f.proxy != "" {
		return f.proxy, nil
	}
	u, err := message.ParseURI(uri)
	if err != nil {
		return "", err
	}
	return u.Addr(), nil
}

func run(ctx context.Context, f *flags, uri string, stdin io.Reader, out io.Writer) error {
	r, err := f.request(uri, stdin)
	if err != nil {
		return err
	}
	opts, err := f.clientOptions()
	if err != nil {
		return err
	}
	target, err := f.target(uri)
	if err != nil {
		return err
	}
	c, err := udp.Dial(target, out, opts...)
	if err != nil {
		return err
	}
	defer c.Close()
	if f.group != "" {
		group, errG := net.ResolveUDPAddr(c.UDPConn().Network(), net.JoinHostPort(f.group, "0"))
		if errG != nil {
			return fmt.Errorf("cannot resolve group %v: %w", f.group, errG)
		}
		if errG = c.UDPConn().JoinGroupAllInterfaces(group); errG != nil {
			return errG
		}
	}
	req, err := c.NewRequest(r)
	if err != nil {
		return err
	}
	if f.verbose {
		log.Printf("sending %v to %v", req.String(), c.RemoteAddr())
	}
	return c.Run(ctx, req)
}
