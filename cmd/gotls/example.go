package main

import (
	"fmt"
	"strings"
)

func showExamples() {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      gotls: Interactive Examples                         ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	examples := []struct {
		title       string
		description string
		code        string
	}{
		{
			title:       "Example 1: Basic Server/Client",
			description: "Simple echo server and client using the connection API",
			code: `package main

import (
    "fmt"
    "net"
    "github.com/pzverkov/gotls/pkg/conn"
)

func main() {
    // SERVER
    ln, _ := net.Listen("tcp", ":8443")
    listener := conn.Listen(ln, conn.Config{}, serverHandshakeConfig(), conn.RateLimitConfig{}, nil)
    defer listener.Close()

    go func() {
        for {
            c, _ := listener.Accept()
            go func(c *conn.Connection) {
                defer c.Close()
                data, _ := c.Read(0)
                fmt.Printf("Received: %s\n", data)
                c.Write([]byte("Echo: " + string(data)))
            }(c)
        }
    }()

    // CLIENT
    client, _ := conn.Dial("tcp", "localhost:8443", conn.Config{}, clientHandshakeConfig("localhost"))
    defer client.Close()

    client.Write([]byte("Hello, TLS world!"))
    response, _ := client.Read(0)
    fmt.Printf("Server replied: %s\n", response)
}`,
		},
		{
			title:       "Example 2: Low-Level Hybrid Key Exchange",
			description: "Direct use of the X25519+ML-KEM-1024 hybrid group",
			code: `package main

import (
    "bytes"
    "fmt"
    "github.com/pzverkov/gotls/internal/constants"
    "github.com/pzverkov/gotls/pkg/kex"
)

func main() {
    // INITIATOR: generate an ephemeral key exchange instance
    ke, _ := kex.New(constants.GroupX25519MLKEM1024)
    clientShare := ke.PublicShare()

    // RESPONDER: encapsulate against the client's share
    serverShare, responderSecret, _ := kex.Encapsulate(clientShare)

    // INITIATOR: combine the responder's share into the same secret
    initiatorSecret, _ := ke.SharedSecret(serverShare)

    fmt.Printf("Secrets match: %v\n", bytes.Equal(initiatorSecret, responderSecret))
    fmt.Printf("Client share: %d bytes\n", len(clientShare))
    fmt.Printf("Server share: %d bytes\n", len(serverShare))
    fmt.Printf("Shared secret: %d bytes\n", len(initiatorSecret))
}`,
		},
		{
			title:       "Example 3: Custom Configuration",
			description: "Using custom connection configuration with timeouts",
			code: `package main

import (
    "time"
    "github.com/pzverkov/gotls/pkg/conn"
)

func main() {
    // Custom configuration
    connCfg := conn.Config{
        ReadTimeout:  30 * time.Second,
        WriteTimeout: 30 * time.Second,
    }

    // Dial with custom config
    client, _ := conn.Dial("tcp", "server:8443", connCfg, clientHandshakeConfig("server"))
    defer client.Close()

    client.Write([]byte("Request"))
    response, _ := client.Read(0)
    _ = response
}`,
		},
		{
			title:       "Example 4: Connection Pooling",
			description: "Reusing client connections across requests with pkg/conn.Pool",
			code: `package main

import (
    "context"
    "fmt"
    "github.com/pzverkov/gotls/pkg/conn"
)

func main() {
    cfg := conn.DefaultPoolConfig()
    cfg.ConnConfig = conn.Config{}
    cfg.HandshakeConfig = clientHandshakeConfig("server")
    cfg.MinConns = 2
    cfg.MaxConns = 16

    pool, _ := conn.NewPool("tcp", "server:8443", cfg)
    pool.Start(context.Background())
    defer pool.Close()

    pc, _ := pool.Acquire(context.Background())
    defer pc.Release()

    pc.Write([]byte("pooled request"))
    response, _ := pc.Read(0)
    fmt.Printf("Response: %s\n", response)
}`,
		},
		{
			title:       "Example 5: Error Handling",
			description: "Proper error handling and resource cleanup",
			code: `package main

import (
    "fmt"
    "log"
    "github.com/pzverkov/gotls/pkg/conn"
    qerrors "github.com/pzverkov/gotls/internal/errors"
)

func main() {
    client, err := conn.Dial("tcp", "server:8443", conn.Config{}, clientHandshakeConfig("server"))
    if err != nil {
        log.Fatalf("Connection failed: %v", err)
    }
    defer client.Close()

    // Write with error checking
    if _, err := client.Write([]byte("Important data")); err != nil {
        if qerrors.Is(err, qerrors.ErrClosedConnection) {
            fmt.Println("Connection was closed")
        } else {
            log.Printf("Write error: %v", err)
        }
        return
    }

    // Read with error handling
    data, err := client.Read(0)
    if err != nil {
        log.Printf("Read error: %v", err)
        return
    }

    fmt.Printf("Received: %s\n", data)
}`,
		},
		{
			title:       "Example 6: Security Best Practices",
			description: "Important security considerations",
			code: `package main

import (
    "log"
    "time"
    "github.com/pzverkov/gotls/pkg/conn"
)

func main() {
    // BEST PRACTICE 1: Pin the expected peer identity.
    // X.509 chain validation is out of scope; PeerCertData pins the raw
    // public key a client expects a server to present.
    hcfg := clientHandshakeConfig("server")
    hcfg.PeerCertData = expectedServerPublicKey

    // BEST PRACTICE 2: Set reasonable timeouts.
    connCfg := conn.Config{
        ReadTimeout:  30 * time.Second,
        WriteTimeout: 30 * time.Second,
    }

    // BEST PRACTICE 3: Monitor for rekey via UpdateKeys/KeyUpdate.
    client, _ := conn.Dial("tcp", "server:8443", connCfg, hcfg)
    defer client.Close()

    if err := client.UpdateKeys(false); err != nil {
        log.Printf("rekey failed: %v", err)
    }

    // BEST PRACTICE 4: Handle errors and close connections.
    // Always defer Close() and check all errors.

    // BEST PRACTICE 5: Use an HSM for long-term signing keys in production.
    // This engine uses ephemeral key-exchange shares per handshake (good!).
    // For the server's identity key, use hardware security modules.
}`,
		},
	}

	for i, ex := range examples {
		fmt.Printf("┌%s┐\n", strings.Repeat("─", 58))
		fmt.Printf("│ %s%s │\n", ex.title, strings.Repeat(" ", 58-len(ex.title)-2))
		fmt.Printf("└%s┘\n", strings.Repeat("─", 58))
		fmt.Println()
		fmt.Println(ex.description)
		fmt.Println()
		fmt.Println(ex.code)
		fmt.Println()

		if i < len(examples)-1 {
			fmt.Println()
		}
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                    Next Steps                             ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println("Try the demo:")
	fmt.Println("  1. Terminal 1: gotls demo --mode server --addr :8443")
	fmt.Println("  2. Terminal 2: gotls demo --mode client --addr localhost:8443")
	fmt.Println()
	fmt.Println("Run benchmarks:")
	fmt.Println("  gotls bench --handshakes 100 --throughput")
	fmt.Println()
	fmt.Println("Documentation:")
	fmt.Println("  https://github.com/pzverkov/gotls")
	fmt.Println("  https://pkg.go.dev/github.com/pzverkov/gotls")
	fmt.Println()
	fmt.Println("Security:")
	fmt.Println("  See the best-practices example above and DESIGN.md")
	fmt.Println()
}
