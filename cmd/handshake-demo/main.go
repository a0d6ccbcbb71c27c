// Command handshake-demo negotiates a proxy tunnel and reports whether it
// succeeded. It is not part of the handshake core: spec.md §1 scopes CLI,
// configuration loading, and tunneled-stream consumption out of the core as
// external-collaborator concerns, but a complete repository in this
// corpus's style still ships a runnable entry point. Grounded on
// die-net-conduit/main.go's run() (pflag flags, errgroup.WithContext,
// signal.NotifyContext shutdown) and billy-rubin-Socks-proxy's
// cmd/socks-proxy/main.go (event-loop construction/registration order).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"proxyhandshake/internal/dns"
	"proxyhandshake/internal/domain"
	"proxyhandshake/internal/handshake"
	"proxyhandshake/internal/transport"
	"proxyhandshake/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		proxyType = pflag.String("proxy-type", "socks5", "Proxy protocol: http | socks4 | socks5")
		proxyAddr = pflag.String("proxy-addr", "", "Proxy server address, host:port (required)")
		target    = pflag.String("target", "", "Target host:port to tunnel to (required)")
		user      = pflag.String("user", "", "Username for proxy auth (SOCKS5 user/pass, or HTTP Proxy-Authorization)")
		pass      = pflag.String("pass", "", "Password for proxy auth")
		dnsServer = pflag.String("dns-server", dns.DefaultServer, "Resolver used for SOCKS4 domain-name targets")
		timeout   = pflag.Duration("connect-timeout", 10*time.Second, "Timeout for the initial TCP connect to the proxy")
	)
	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	if *proxyAddr == "" || *target == "" {
		return fmt.Errorf("both --proxy-addr and --target are required")
	}

	pType, err := parseProxyType(*proxyType)
	if err != nil {
		return err
	}
	targetHost, targetPort, err := splitHostPort(*target)
	if err != nil {
		return fmt.Errorf("invalid --target: %w", err)
	}

	log := logger.Setup()
	log.Info("dialing proxy", "addr", *proxyAddr, "proxy_type", *proxyType)

	conn, err := transport.Dial(*proxyAddr)
	if err != nil {
		return fmt.Errorf("dial proxy: %w", err)
	}
	if err := conn.WaitConnected(*timeout); err != nil {
		_ = conn.Close()
		return fmt.Errorf("connect to proxy: %w", err)
	}
	log.Info("connected to proxy", "addr", *proxyAddr)

	loop, err := transport.NewEpollLoop(log)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("create event loop: %w", err)
	}
	defer loop.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan *domain.Error, 1)
	sink := domain.EventSinkFunc(func(ev domain.SocketEvent) {
		switch ev.Kind {
		case domain.EventConnection:
			done <- nil
		case domain.EventClose:
			herr, _ := ev.Err.(*domain.Error)
			done <- herr
		}
	})

	resolver := dns.New(*dnsServer)
	driver := handshake.New(conn, sink, log, resolver)

	if err := loop.Register(conn.Fd(), domain.EventTypeRead|domain.EventTypeWrite); err != nil {
		_ = conn.Close()
		return fmt.Errorf("register proxy connection: %w", err)
	}

	if herr := driver.BeginHandshake(domain.Params{
		Type: pType,
		Host: targetHost,
		Port: targetPort,
		User: *user,
		Pass: *pass,
	}); herr != nil {
		_ = conn.Close()
		return fmt.Errorf("begin handshake: %w", herr)
	}
	driver.OnWritable() // the proxy connection is already known writable

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(conn)
	})

	select {
	case herr := <-done:
		driver.Detach()
		_ = conn.Close()
		loop.Stop()
		if herr != nil {
			return fmt.Errorf("handshake failed: %w", herr)
		}
		log.Info("tunnel ready", "target", *target)
		return nil
	case <-ctx.Done():
		driver.Detach()
		_ = conn.Close()
		loop.Stop()
		return ctx.Err()
	}
}

func parseProxyType(s string) (domain.ProxyType, error) {
	switch s {
	case "http":
		return domain.ProxyHTTP, nil
	case "socks4":
		return domain.ProxySOCKS4, nil
	case "socks5":
		return domain.ProxySOCKS5, nil
	default:
		return 0, fmt.Errorf("unknown --proxy-type %q (want http, socks4, or socks5)", s)
	}
}

func splitHostPort(hostport string) (string, int, error) {
	host, portStr, err := splitLastColon(hostport)
	if err != nil {
		return "", 0, err
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

// splitLastColon splits "host:port", tolerating IPv6 literals such as
// "[::1]:1080" by splitting on the last colon.
func splitLastColon(hostport string) (string, string, error) {
	for i := len(hostport) - 1; i >= 0; i-- {
		if hostport[i] == ':' {
			host := hostport[:i]
			if len(host) >= 2 && host[0] == '[' && host[len(host)-1] == ']' {
				host = host[1 : len(host)-1]
			}
			return host, hostport[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("missing port in %q", hostport)
}
