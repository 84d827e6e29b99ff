package tunnel

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/yamux"
)

// Agent dials a relay outbound and multiplexes incoming HTTP traffic
// back to the local API server via yamux. This lets a host behind NAT
// expose its run API without any inbound port.
type Agent struct {
	relayURL  string // wss://relay.example.com/agent
	secret    string // pre-shared secret
	localAddr string // e.g. localhost:8800
}

func NewAgent(relayURL, secret, localAddr string) *Agent {
	return &Agent{
		relayURL:  relayURL,
		secret:    secret,
		localAddr: localAddr,
	}
}

// Run connects to the relay and serves tunneled traffic, reconnecting
// with backoff on failure. Blocks until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		err := a.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("tunnel: connection failed: %v", err)
			log.Printf("tunnel: reconnecting in %s", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
		} else {
			backoff = time.Second
		}
	}
}

func (a *Agent) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		// Relays commonly run self-signed; the pre-shared secret
		// authenticates the connection.
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	header := http.Header{}
	header.Set("X-Relay-Secret", a.secret)

	wsConn, _, err := dialer.DialContext(ctx, a.relayURL, header)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	defer wsConn.Close()

	log.Printf("tunnel: connected to relay %s", a.relayURL)

	// The agent is the yamux server: the relay opens a stream per
	// proxied request.
	session, err := yamux.Server(NewConn(wsConn), yamux.DefaultConfig())
	if err != nil {
		return fmt.Errorf("yamux server: %w", err)
	}
	defer session.Close()

	go func() {
		<-ctx.Done()
		session.Close()
	}()

	for {
		stream, err := session.Accept()
		if err != nil {
			return fmt.Errorf("accept stream: %w", err)
		}
		go a.handleStream(stream)
	}
}

func (a *Agent) handleStream(stream net.Conn) {
	defer stream.Close()

	local, err := net.Dial("tcp", a.localAddr)
	if err != nil {
		log.Printf("tunnel: dial local %s: %v", a.localAddr, err)
		return
	}
	defer local.Close()

	done := make(chan struct{})
	go func() {
		io.Copy(local, stream)
		close(done)
	}()
	io.Copy(stream, local)
	<-done
}
