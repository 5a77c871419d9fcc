package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pzverkov/gotls/pkg/conn"
	"github.com/pzverkov/gotls/pkg/metrics"
)

func runDemo(mode, addr, message string, verbose bool, obsAddr, logLevel, logFormat, tracing string) {
	collector, logger, err := setupObservability(logLevel, logFormat, tracing)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch mode {
	case "server":
		runDemoServer(addr, verbose, obsAddr, collector, logger)
	case "client":
		runDemoClient(addr, message, verbose, collector, logger)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s (use 'server' or 'client')\n", mode)
		os.Exit(1)
	}
}

func runDemoServer(addr string, verbose bool, obsAddr string, collector *metrics.Collector, logger *metrics.Logger) {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      gotls TLS Engine Demo Server                        ║")
	fmt.Println("║      Hybrid group: ML-KEM-1024 + X25519                  ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	if verbose {
		fmt.Println("Security Properties:")
		fmt.Println("  • Post-Quantum: ML-KEM-1024 (NIST Category 5)")
		fmt.Println("  • Classical: X25519 (128-bit)")
		fmt.Println("  • Hybrid: Secure if EITHER algorithm is secure")
		fmt.Println("  • Encryption: AES-256-GCM")
		fmt.Println()
	}

	fmt.Printf("Starting server on %s...\n", addr)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to start listener: %v\n", err)
		os.Exit(1)
	}

	hcfg, err := serverHandshakeConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to generate server identity: %v\n", err)
		os.Exit(1)
	}
	rateLimitObserver := metrics.NewRateLimitObserver(collector, logger)
	listener := conn.Listen(ln, defaultConnConfig(), hcfg, conn.RateLimitConfig{MaxConnectionsPerIP: 64, HandshakeRateLimit: 50, HandshakeBurst: 10}, rateLimitObserver)
	defer func() { _ = listener.Close() }()

	actualAddr := listener.Addr().String()
	fmt.Printf("✓ Server listening on %s\n", actualAddr)
	fmt.Println("Waiting for connections... (Press Ctrl+C to stop)")
	fmt.Println()

	if obsAddr != "" {
		server := metrics.NewServer(metrics.ServerConfig{
			Collector:        collector,
			Version:          version,
			Namespace:        "tls_engine",
			EnablePrometheus: true,
			EnableHealth:     true,
		})

		go func() {
			if err := server.ListenAndServe(obsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("observability server error", metrics.Fields{"error": err.Error()})
			}
		}()

		fmt.Printf("✓ Observability server on %s (metrics: /metrics, health: /health)\n", obsAddr)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down server...")
		_ = listener.Close()
		os.Exit(0)
	}()

	connectionNum := 0
	for {
		connectionNum++
		fmt.Printf("[%s] Waiting for connection #%d...\n", time.Now().Format("15:04:05"), connectionNum)

		c, err := listener.Accept()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Accept error: %v\n", err)
			continue
		}

		fmt.Printf("[%s] ✓ Connection #%d established\n", time.Now().Format("15:04:05"), connectionNum)

		observer := metrics.NewConnectionObserver(metrics.ConnectionObserverConfig{
			Collector: collector,
			Logger:    logger,
			SessionID: c.Result().SessionID,
			Role:      "responder",
		})
		observer.OnSessionStart()

		if verbose {
			fmt.Printf("  Remote: %s\n", c.RemoteAddr())
			fmt.Printf("  Local: %s\n", c.LocalAddr())
			fmt.Printf("  Cipher Suite: %v\n", c.Result().CipherSuite)
		}

		go handleConnection(c, observer, connectionNum, verbose)
	}
}

func handleConnection(c *conn.Connection, observer *metrics.ConnectionObserver, connNum int, verbose bool) {
	defer func() {
		observer.OnSessionEnd()
		_ = c.Close()
	}()

	for {
		if verbose {
			fmt.Printf("[%s] [Conn #%d] Waiting for data...\n", time.Now().Format("15:04:05"), connNum)
		}

		data, err := c.Read(0)
		if err != nil {
			if err == io.EOF || strings.Contains(err.Error(), "closed") {
				fmt.Printf("[%s] [Conn #%d] Client disconnected\n", time.Now().Format("15:04:05"), connNum)
			} else {
				fmt.Printf("[%s] [Conn #%d] Read error: %v\n", time.Now().Format("15:04:05"), connNum, err)
			}
			return
		}

		fmt.Printf("[%s] [Conn #%d] ← Received: %q (%d bytes)\n",
			time.Now().Format("15:04:05"), connNum, string(data), len(data))

		// Echo back
		response := fmt.Sprintf("Echo: %s", data)
		if _, err := c.Write([]byte(response)); err != nil {
			fmt.Printf("[%s] [Conn #%d] Write error: %v\n", time.Now().Format("15:04:05"), connNum, err)
			return
		}

		if verbose {
			fmt.Printf("[%s] [Conn #%d] → Sent: %q\n", time.Now().Format("15:04:05"), connNum, response)
		}
	}
}

func runDemoClient(addr, message string, verbose bool, collector *metrics.Collector, logger *metrics.Logger) {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      gotls TLS Engine Demo Client                        ║")
	fmt.Println("║      Hybrid group: ML-KEM-1024 + X25519                  ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	if verbose {
		fmt.Println("Handshake Protocol (TLS 1.3, RFC 8446 §2):")
		fmt.Println("  1. ClientHello → key_share (hybrid X25519+ML-KEM-1024)")
		fmt.Println("  2. ServerHello ← key_share, then EncryptedExtensions/Certificate/Finished")
		fmt.Println("  3. Finished → client completes the handshake")
		fmt.Println()
	}

	fmt.Printf("Connecting to %s...\n", addr)

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	netConn, err := net.Dial("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}

	c := conn.New(netConn, defaultConnConfig())

	startHandshake := time.Now()
	if err := c.HandshakeClient(clientHandshakeConfig(host)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Handshake failed: %v\n", err)
		os.Exit(1)
	}
	handshakeDuration := time.Since(startHandshake)
	defer func() { _ = c.Close() }()

	observer := metrics.NewConnectionObserver(metrics.ConnectionObserverConfig{
		Collector: collector,
		Logger:    logger,
		SessionID: c.Result().SessionID,
		Role:      "initiator",
	})
	observer.OnSessionStart()
	defer observer.OnSessionEnd()

	fmt.Printf("✓ Connected successfully\n")
	if verbose {
		fmt.Printf("  Handshake time: %v\n", handshakeDuration)
		fmt.Printf("  Local: %s\n", c.LocalAddr())
		fmt.Printf("  Remote: %s\n", c.RemoteAddr())
		fmt.Printf("  Cipher Suite: %v\n", c.Result().CipherSuite)
	}
	fmt.Println()

	// If message is "-", read from stdin
	if message == "-" {
		fmt.Println("Interactive mode (type messages, Ctrl+D to exit):")
		runInteractiveClient(c, verbose)
		return
	}

	// Send single message
	fmt.Printf("Sending: %q\n", message)
	if _, err := c.Write([]byte(message)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Write failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Message sent")

	fmt.Println("Waiting for response...")
	response, err := c.Read(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Read failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Received: %q\n", string(response))
}

func runInteractiveClient(c *conn.Connection, verbose bool) {
	scanner := bufio.NewScanner(os.Stdin)
	messageNum := 0

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break // EOF or error
		}

		message := scanner.Text()
		if message == "" {
			continue
		}

		messageNum++

		if verbose {
			fmt.Printf("[%d] Sending: %q\n", messageNum, message)
		}

		if _, err := c.Write([]byte(message)); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			return
		}

		if verbose {
			fmt.Printf("[%d] Waiting for response...\n", messageNum)
		}

		response, err := c.Read(0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			return
		}

		fmt.Printf("← %s\n", string(response))
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Input error: %v\n", err)
	}
}

func setupObservability(logLevel, logFormat, tracing string) (*metrics.Collector, *metrics.Logger, error) {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return nil, nil, err
	}

	format, err := parseLogFormat(logFormat)
	if err != nil {
		return nil, nil, err
	}

	logger := metrics.NewLogger(
		metrics.WithOutput(os.Stderr),
		metrics.WithLevel(level),
		metrics.WithFormat(format),
		metrics.WithFields(metrics.Fields{"app": "gotls"}),
	)
	metrics.SetLogger(logger)

	switch strings.ToLower(tracing) {
	case "none":
		metrics.SetTracer(metrics.NoOpTracer{})
	case "simple":
		metrics.SetTracer(metrics.NewSimpleTracer())
	case "otel":
		if !metrics.OTelEnabled() {
			return nil, nil, fmt.Errorf("otel tracing not enabled (build with -tags otel)")
		}
		metrics.SetTracer(metrics.NewOTelTracer("gotls"))
	default:
		return nil, nil, fmt.Errorf("invalid tracing mode: %s (use none, simple, or otel)", tracing)
	}

	collector := metrics.NewCollector(metrics.Labels{
		"service": "gotls",
	})
	metrics.SetGlobal(collector)

	return collector, logger, nil
}

func parseLogLevel(level string) (metrics.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return metrics.LevelDebug, nil
	case "info":
		return metrics.LevelInfo, nil
	case "warn", "warning":
		return metrics.LevelWarn, nil
	case "error":
		return metrics.LevelError, nil
	case "silent", "off", "none":
		return metrics.LevelSilent, nil
	default:
		return metrics.LevelInfo, fmt.Errorf("invalid log level: %s (use debug, info, warn, error, silent)", level)
	}
}

func parseLogFormat(format string) (metrics.Format, error) {
	switch strings.ToLower(format) {
	case "text":
		return metrics.FormatText, nil
	case "json":
		return metrics.FormatJSON, nil
	default:
		return metrics.FormatText, fmt.Errorf("invalid log format: %s (use text or json)", format)
	}
}
