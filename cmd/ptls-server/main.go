// Command ptls-server is a demo pTLS server: it accepts both raw TCP
// connections and WebSocket upgrades, runs the server handshake on each,
// echoes application data back to the sender, and exposes a /healthz
// status endpoint.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	ptls "github.com/ptls-project/ptls"
	"github.com/ptls-project/ptls/core/crypto"
	"github.com/ptls-project/ptls/transport"
)

var rootCmd = &cobra.Command{
	Use:   "ptls-server",
	Short: "Demo pTLS server (TCP + WebSocket)",
	RunE:  runServer,
}

var (
	flagTCPAddr   string
	flagHTTPAddr  string
	flagKeyBits   int
	flagSigHash   uint8
	flagPadHash   uint8
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagTCPAddr, "tcp", envOr("PTLS_TCP_ADDR", ":4443"), "TCP listen address (env: PTLS_TCP_ADDR)")
	flags.StringVar(&flagHTTPAddr, "http", envOr("PTLS_HTTP_ADDR", ":8443"), "HTTP/WebSocket listen address (env: PTLS_HTTP_ADDR)")
	flags.IntVar(&flagKeyBits, "key-bits", 2048, "RSA key size in bits for the server's generated identity")
	flags.Uint8Var(&flagSigHash, "sig-hash", uint8(crypto.HashSHA256), "signature hash id (0=SHA224,1=SHA256,2=SHA384,3=SHA512)")
	flags.Uint8Var(&flagPadHash, "pad-hash", uint8(crypto.HashSHA256), "padding hash id (0=SHA224,1=SHA256,2=SHA384,3=SHA512)")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute root command")
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	keyPair, err := ptls.GenerateKeyPair(flagKeyBits)
	if err != nil {
		log.Fatal().Err(err).Msg("[ptls-server] generate identity key pair")
	}
	log.Info().Int("bits", flagKeyBits).Msg("[ptls-server] generated server identity")

	ln, err := transport.ListenTCP(flagTCPAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("[ptls-server] listen")
	}
	go serveTCP(ln, keyPair)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/tunnel", func(w http.ResponseWriter, req *http.Request) {
		conn, err := transport.AcceptWS(w, req)
		if err != nil {
			log.Warn().Err(err).Msg("[ptls-server] websocket accept")
			return
		}
		serveConn(conn, keyPair)
	})

	httpServer := &http.Server{Addr: flagHTTPAddr, Handler: r}
	go func() {
		log.Info().Str("addr", flagHTTPAddr).Msg("[ptls-server] serving HTTP/WebSocket")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("[ptls-server] http server")
		}
	}()

	log.Info().Str("addr", flagTCPAddr).Msg("[ptls-server] serving TCP")
	<-ctx.Done()
	log.Info().Msg("[ptls-server] shutting down")
	_ = ln.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func serveTCP(ln net.Listener, keyPair *ptls.KeyPair) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go serveConn(conn, keyPair)
	}
}

func serveConn(conn net.Conn, keyPair *ptls.KeyPair) {
	defer conn.Close()

	tun, err := ptls.New(conn, conn, keyPair, crypto.HashId(flagSigHash), crypto.HashId(flagPadHash))
	if err != nil {
		log.Error().Err(err).Msg("[ptls-server] build tunnel")
		return
	}
	tun.SetTimeout(10 * time.Second)

	if err := tun.ServerHandshake(context.Background()); err != nil {
		log.Warn().Err(err).Msg("[ptls-server] handshake failed")
		return
	}
	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("[ptls-server] handshake complete")

	for {
		data, err := tun.Receive()
		if err != nil {
			log.Info().Err(err).Msg("[ptls-server] connection closed")
			return
		}
		if err := tun.Send(data); err != nil {
			log.Warn().Err(err).Msg("[ptls-server] echo failed")
			return
		}
	}
}
