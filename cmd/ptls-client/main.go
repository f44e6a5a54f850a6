// Command ptls-client is a demo pTLS client: it dials a server over TCP
// (or WebSocket, via --ws), runs the client handshake, sends a line of
// stdin at a time, and prints whatever comes back.
package main

import (
	"bufio"
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	ptls "github.com/ptls-project/ptls"
	"github.com/ptls-project/ptls/core/crypto"
	"github.com/ptls-project/ptls/internal/trust"
	"github.com/ptls-project/ptls/transport"
)

var rootCmd = &cobra.Command{
	Use:   "ptls-client",
	Short: "Demo pTLS client (TCP or WebSocket)",
	RunE:  runClient,
}

var (
	flagAddr    string
	flagWS      bool
	flagSigHash uint8
	flagPadHash uint8
	flagKeyBits int
	flagTrustDB string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagAddr, "addr", envOr("PTLS_ADDR", "localhost:4443"), "server address (host:port for TCP, ws(s):// URL with --ws) (env: PTLS_ADDR)")
	flags.BoolVar(&flagWS, "ws", false, "dial over WebSocket instead of raw TCP")
	flags.Uint8Var(&flagSigHash, "sig-hash", uint8(crypto.HashSHA256), "signature hash id (0=SHA224,1=SHA256,2=SHA384,3=SHA512)")
	flags.Uint8Var(&flagPadHash, "pad-hash", uint8(crypto.HashSHA256), "padding hash id (0=SHA224,1=SHA256,2=SHA384,3=SHA512)")
	flags.IntVar(&flagKeyBits, "key-bits", 2048, "RSA key size in bits for the client's generated identity")
	flags.StringVar(&flagTrustDB, "trust-db", envOr("PTLS_TRUST_DB", "ptls-trust.db"), "pebble database caching known server keys, keyed by --addr (env: PTLS_TRUST_DB)")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute root command")
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := trust.Open(flagTrustDB)
	if err != nil {
		return fmt.Errorf("open trust store: %w", err)
	}
	defer store.Close()

	conn, err := dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	keyPair, err := ptls.GenerateKeyPair(flagKeyBits)
	if err != nil {
		return fmt.Errorf("generate identity key pair: %w", err)
	}

	tun, err := ptls.New(conn, conn, keyPair, crypto.HashId(flagSigHash), crypto.HashId(flagPadHash))
	if err != nil {
		return fmt.Errorf("build tunnel: %w", err)
	}
	tun.SetTimeout(10 * time.Second)

	abbreviated := false
	if known, err := store.PeerKey(flagAddr); err == nil {
		pub, err := ptls.ParsePublicKeyDER(known)
		if err != nil {
			return fmt.Errorf("parse cached peer key for %s: %w", flagAddr, err)
		}
		if err := tun.SetPeerPublicKey(pub); err != nil {
			return fmt.Errorf("install cached peer key: %w", err)
		}
		abbreviated = true
		log.Info().Str("addr", flagAddr).Msg("[ptls-client] using cached server key, abbreviated handshake")
	} else if err != trust.ErrNotFound {
		return fmt.Errorf("look up cached peer key: %w", err)
	}

	if err := tun.Handshake(ctx); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	log.Info().Msg("[ptls-client] handshake complete")

	if !abbreviated {
		if pub := tun.PeerPublicKey(); pub != nil {
			der := x509.MarshalPKCS1PublicKey(pub)
			if err := store.RememberPeerKey(flagAddr, der); err != nil {
				log.Warn().Err(err).Msg("[ptls-client] failed to cache server key")
			} else {
				log.Info().Str("addr", flagAddr).Msg("[ptls-client] cached server key for future abbreviated handshakes")
			}
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := tun.Send(line); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		reply, err := tun.Receive()
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		fmt.Println(string(reply))
	}
	return scanner.Err()
}

func dial(ctx context.Context) (net.Conn, error) {
	if flagWS {
		return transport.DialWS(ctx, flagAddr)
	}
	return transport.DialTCP(flagAddr)
}
