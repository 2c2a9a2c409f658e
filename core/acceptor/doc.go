// Package acceptor multiplexes ACME tls-alpn-01 challenge probes and
// ordinary TLS clients on a single listening port.
//
// Every inbound connection starts with a peek at the TLS ClientHello. When
// the client offers the "acme-tls/1" ALPN protocol, the handshake is
// completed with the challenge server configuration, whose certificate is
// what the ACME validation server came to see, and the stream is closed
// immediately; completing and closing that handshake is the whole protocol
// action. Every other connection completes the handshake with the default
// configuration and is handed to the server as a live encrypted stream.
//
// Both outcomes are expressed as a single Transport type, so upstream code
// treats an answered challenge probe exactly like a client that disconnected
// right after connecting.
//
// # Usage
//
// The two *tls.Config handles normally come from an issuance driver such as
// core/issuer:
//
//	a, err := acceptor.New(state.ChallengeConfig(), state.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ln, err := net.Listen("tcp", ":443")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	srv := &http.Server{Handler: handler}
//	if err := srv.Serve(acceptor.NewListener(ln, a)); err != nil {
//		log.Fatal(err)
//	}
//
// Frameworks that drive acceptance themselves can call Accept directly:
//
//	transport, err := a.Accept(ctx, rawConn)
//	if err != nil {
//		rawConn.Close() // handshake failed, drop the connection
//		return
//	}
//	serve(transport)
//
// Accept never retries; any I/O error during peeking or handshake completion
// fails the whole attempt.
package acceptor
