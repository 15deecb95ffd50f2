package main

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/hasirciogluhq/xtransform-server/pkg/wire"
)

const (
	defaultPort = 6666
	defaultHost = "localhost"
)

// Usage: client [port] [host]
func main() {
	host, port, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	fmt.Printf("Connecting to server %s on port %d\n", host, port)

	conn, err := dial(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := messagingLoop(conn, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(1)
	}
}

func parseArgs(args []string) (host string, port int, err error) {
	host, port = defaultHost, defaultPort
	if len(args) >= 1 && args[0] != "" {
		port, err = strconv.Atoi(args[0])
		if err != nil || port < 1 || port > 65535 {
			return "", 0, fmt.Errorf("invalid port %q", args[0])
		}
	}
	if len(args) >= 2 && args[1] != "" {
		host = args[1]
	}
	return host, port, nil
}

func dial(addr string) (net.Conn, error) {
	if enabled, _ := strconv.ParseBool(os.Getenv("TLS_ENABLED")); enabled {
		skipVerify, _ := strconv.ParseBool(os.Getenv("TLS_SKIP_VERIFY"))
		return tls.Dial("tcp", addr, &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: skipVerify,
		})
	}
	return net.Dial("tcp", addr)
}

// messagingLoop sends every line read from in as one request and prints the
// response. It returns nil when in is exhausted.
func messagingLoop(conn io.ReadWriter, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	// Lines past the frame limit must reach WriteMessage to be rejected there.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*wire.MaxMessageSize)
	for {
		fmt.Fprint(out, "Enter request: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		if err := wire.WriteMessage(conn, scanner.Text()); err != nil {
			if errors.Is(err, wire.ErrMessageTooLong) {
				fmt.Fprintf(out, "Request rejected: %v\n", err)
				continue
			}
			return err
		}

		response, err := wire.ReadMessage(conn)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		printResponse(out, response)
	}
}

func printResponse(out io.Writer, response string) {
	fmt.Fprintln(out, "Server response:")
	if response == "" {
		fmt.Fprintln(out, "No response")
		return
	}
	var b strings.Builder
	for _, line := range strings.Split(response, "\n\r") {
		b.WriteString("\t")
		b.WriteString(line)
	}
	fmt.Fprintln(out, b.String())
}
